// Package agent exposes the mail client to a conversational agent as a fixed
// catalog of actions. Every action answers with a sentence the agent can
// relay to the user; failures are answered the same way.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jyothri/mailpilot/fetch"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/store"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
	TypeObjects ParamType = "object[]"
)

type Parameter struct {
	Name        string      `json:"name"`
	Type        ParamType   `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Attributes  []Parameter `json:"attributes,omitempty"`
}

// Args are the decoded JSON arguments of one invocation.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) Objects(name string) []map[string]any {
	items, _ := a[name].([]any)
	objects := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

type Handler func(ctx context.Context, args Args) string

type Action struct {
	Name        string      `json:"name"`
	Aliases     []string    `json:"aliases,omitempty"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	handler     Handler
}

// Fetcher is the part of the fetch layer actions drive.
type Fetcher interface {
	FetchInbox(ctx context.Context) error
	FetchEmailDetail(ctx context.Context, id string) *model.EmailDetail
	FilterInbox(ctx context.Context, query string) ([]model.EmailSummary, error)
	SendEmail(ctx context.Context, draft model.ComposeData) (fetch.SendResult, error)
}

type Surface struct {
	store   *store.Store
	fetcher Fetcher
	actions []*Action
	byName  map[string]*Action
}

func NewSurface(st *store.Store, fetcher Fetcher) *Surface {
	s := &Surface{store: st, fetcher: fetcher, byName: map[string]*Action{}}
	for _, action := range s.catalog() {
		s.actions = append(s.actions, action)
		s.byName[action.Name] = action
		for _, alias := range action.Aliases {
			s.byName[alias] = action
		}
	}
	return s
}

// Actions returns the catalog in declaration order.
func (s *Surface) Actions() []Action {
	out := make([]Action, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, *a)
	}
	return out
}

// Lookup resolves a name or alias.
func (s *Surface) Lookup(name string) (Action, bool) {
	a, ok := s.byName[name]
	if !ok {
		return Action{}, false
	}
	return *a, true
}

// Invoke runs the named action. It never panics and never fails: the result
// is always a sentence for the agent to relay.
func (s *Surface) Invoke(ctx context.Context, name string, args Args) (result string) {
	action, ok := s.byName[name]
	if !ok {
		return fmt.Sprintf("Unknown action %q. Available actions: %s", name, strings.Join(s.names(), ", "))
	}
	if args == nil {
		args = Args{}
	}
	if err := validate(action.Parameters, args); err != nil {
		slog.Warn("Rejected agent action", "action", action.Name, "error", err)
		return fmt.Sprintf("Invalid arguments for %s: %v", action.Name, err)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Agent action panicked", "action", action.Name, "panic", r)
			result = fmt.Sprintf("The %s action failed unexpectedly.", action.Name)
		}
	}()
	slog.Info("Running agent action", "action", action.Name)
	return action.handler(ctx, args)
}

func (s *Surface) names() []string {
	names := make([]string, 0, len(s.actions))
	for _, a := range s.actions {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

func validate(params []Parameter, args map[string]any) error {
	for _, p := range params {
		value, present := args[p.Name]
		if !present || value == nil {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		switch p.Type {
		case TypeString:
			if _, ok := value.(string); !ok {
				return fmt.Errorf("parameter %q must be a string", p.Name)
			}
		case TypeBoolean:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("parameter %q must be a boolean", p.Name)
			}
		case TypeObjects:
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("parameter %q must be an array of objects", p.Name)
			}
			for i, item := range items {
				obj, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("%s[%d] must be an object", p.Name, i)
				}
				if err := validate(p.Attributes, obj); err != nil {
					return fmt.Errorf("%s[%d]: %w", p.Name, i, err)
				}
			}
		}
	}
	return nil
}
