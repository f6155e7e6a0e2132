package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	filterDateLayout = "2006-01-02"
	gmailDateLayout  = "2006/01/02"
)

type EmailFilters struct {
	Sender     string `json:"sender,omitempty"`
	DateFrom   string `json:"dateFrom,omitempty"`
	DateTo     string `json:"dateTo,omitempty"`
	Keyword    string `json:"keyword,omitempty"`
	UnreadOnly bool   `json:"unreadOnly,omitempty"`
}

func (f EmailFilters) IsEmpty() bool {
	return f.Sender == "" && f.DateFrom == "" && f.DateTo == "" && f.Keyword == "" && !f.UnreadOnly
}

// Active returns the keys of the set filters, in query order.
func (f EmailFilters) Active() []string {
	var keys []string
	if f.Sender != "" {
		keys = append(keys, "sender")
	}
	if f.Keyword != "" {
		keys = append(keys, "keyword")
	}
	if f.UnreadOnly {
		keys = append(keys, "unreadOnly")
	}
	if f.DateFrom != "" {
		keys = append(keys, "dateFrom")
	}
	if f.DateTo != "" {
		keys = append(keys, "dateTo")
	}
	return keys
}

// Without returns f with the named filter cleared. Unknown keys leave f as is.
func (f EmailFilters) Without(key string) EmailFilters {
	switch key {
	case "sender":
		f.Sender = ""
	case "dateFrom":
		f.DateFrom = ""
	case "dateTo":
		f.DateTo = ""
	case "keyword":
		f.Keyword = ""
	case "unreadOnly":
		f.UnreadOnly = false
	}
	return f
}

// BuildFilterQuery translates filters into a Gmail search query.
//
// Clauses are appended to base in a fixed order: sender, keyword, unread,
// after, before. Gmail's after: is inclusive and wants slashes, so dateFrom
// only has its dashes replaced. before: is exclusive, so dateTo is moved one
// calendar day forward to keep the user's end date in range.
func BuildFilterQuery(base string, f EmailFilters) (string, error) {
	parts := []string{base}
	if f.Sender != "" {
		parts = append(parts, "from:"+f.Sender)
	}
	if f.Keyword != "" {
		parts = append(parts, f.Keyword)
	}
	if f.UnreadOnly {
		parts = append(parts, "is:unread")
	}
	if f.DateFrom != "" {
		parts = append(parts, "after:"+strings.ReplaceAll(f.DateFrom, "-", "/"))
	}
	if f.DateTo != "" {
		end, err := time.Parse(filterDateLayout, f.DateTo)
		if err != nil {
			return "", fmt.Errorf("invalid dateTo %q: %w", f.DateTo, err)
		}
		parts = append(parts, "before:"+end.AddDate(0, 0, 1).Format(gmailDateLayout))
	}
	return strings.Join(parts, " "), nil
}
