package model

import "fmt"

type View string

const (
	ViewInbox   View = "inbox"
	ViewSent    View = "sent"
	ViewCompose View = "compose"
	ViewDetail  View = "detail"
	ViewSearch  View = "search"
)

var Views = []View{ViewInbox, ViewSent, ViewCompose, ViewDetail, ViewSearch}

func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}
