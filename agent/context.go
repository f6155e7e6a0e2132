package agent

import "github.com/jyothri/mailpilot/model"

const (
	contextBodyLen   = 500
	contextInboxSize = 20
)

// Context is what the agent can see of the client.
type Context struct {
	View         model.View         `json:"view"`
	CurrentEmail *OpenEmail         `json:"currentEmail"`
	Filters      model.EmailFilters `json:"filters"`
	Draft        model.ComposeData  `json:"draft"`
	Inbox        []InboxEntry       `json:"inbox"`
}

type OpenEmail struct {
	Id          string `json:"id"`
	ThreadId    string `json:"threadId"`
	Sender      string `json:"sender"`
	SenderEmail string `json:"senderEmail"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Date        string `json:"date"`
}

// InboxEntry carries real message ids, usable with openEmail.
type InboxEntry struct {
	Id          string `json:"id"`
	Sender      string `json:"sender"`
	SenderEmail string `json:"senderEmail"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	IsRead      bool   `json:"isRead"`
}

func (s *Surface) Context() Context {
	st := s.store.Snapshot()
	c := Context{
		View:    st.View,
		Filters: st.Filters,
		Draft:   st.Draft,
		Inbox:   make([]InboxEntry, 0, min(len(st.Inbox), contextInboxSize)),
	}
	if e := st.CurrentEmail; e != nil {
		c.CurrentEmail = &OpenEmail{
			Id:          e.Id,
			ThreadId:    e.ThreadId,
			Sender:      e.Sender,
			SenderEmail: e.SenderEmail,
			To:          e.To,
			Subject:     e.Subject,
			Body:        truncate(e.PlainBody(), contextBodyLen),
			Date:        e.Date,
		}
	}
	for i, e := range st.Inbox {
		if i == contextInboxSize {
			break
		}
		c.Inbox = append(c.Inbox, InboxEntry{
			Id:          e.Id,
			Sender:      e.Sender,
			SenderEmail: e.SenderEmail,
			Subject:     e.Subject,
			Date:        e.Date,
			IsRead:      e.IsRead,
		})
	}
	return c
}
