package model

import (
	"fmt"
	"strings"
)

type EmailSummary struct {
	Id          string   `json:"id"`
	ThreadId    string   `json:"threadId"`
	Sender      string   `json:"sender"`
	SenderEmail string   `json:"senderEmail"`
	Subject     string   `json:"subject"`
	Snippet     string   `json:"snippet"`
	Date        string   `json:"date"`
	IsRead      bool     `json:"isRead"`
	Labels      []string `json:"labels"`
}

type EmailDetail struct {
	Id          string   `json:"id"`
	ThreadId    string   `json:"threadId"`
	Sender      string   `json:"sender"`
	SenderEmail string   `json:"senderEmail"`
	To          string   `json:"to"`
	Cc          string   `json:"cc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	BodyHtml    string   `json:"bodyHtml,omitempty"`
	Date        string   `json:"date"`
	IsRead      bool     `json:"isRead"`
	Labels      []string `json:"labels"`
}

// ComposeData is the single outgoing draft. InReplyTo and ThreadId travel
// together: both set for a reply, both empty otherwise.
type ComposeData struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	InReplyTo string `json:"inReplyTo,omitempty"`
	ThreadId  string `json:"threadId,omitempty"`
}

// IsComplete reports whether the draft carries the fields a send needs.
func (c ComposeData) IsComplete() bool {
	return c.To != "" && c.Subject != ""
}

func (c ComposeData) IsReply() bool {
	return c.InReplyTo != "" && c.ThreadId != ""
}

// ReplyDraft builds the draft the detail view opens when replying to e.
func ReplyDraft(e EmailDetail) ComposeData {
	return ComposeData{
		To:        replyAddress(e),
		Subject:   replySubject(e),
		Body:      fmt.Sprintf("\n\n---\nOn %s, %s wrote:\n%s", e.Date, e.Sender, e.PlainBody()),
		InReplyTo: e.Id,
		ThreadId:  e.ThreadId,
	}
}

// ForwardDraft builds a forward of e. Forwards start a new thread.
func ForwardDraft(e EmailDetail) ComposeData {
	return ComposeData{
		Subject: prefixSubject("Fwd:", e.Subject),
		Body: fmt.Sprintf("\n\n--- Forwarded message ---\nFrom: %s <%s>\nDate: %s\nSubject: %s\n\n%s",
			e.Sender, e.SenderEmail, e.Date, e.Subject, e.PlainBody()),
	}
}

// replySubject returns the subject a reply to e carries.
func replySubject(e EmailDetail) string {
	return prefixSubject("Re:", e.Subject)
}

func replyAddress(e EmailDetail) string {
	if e.SenderEmail != "" {
		return e.SenderEmail
	}
	return e.Sender
}

func prefixSubject(prefix, subject string) string {
	if strings.HasPrefix(subject, prefix) {
		return subject
	}
	return prefix + " " + subject
}
