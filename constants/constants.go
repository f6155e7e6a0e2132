package constants

const AppName = "mailpilot"

// Gmail system labels.
const (
	LabelInbox  = "INBOX"
	LabelSent   = "SENT"
	LabelUnread = "UNREAD"
)

// Base clauses for filter queries. The filter panel narrows to the primary
// category; agent-applied filters do not.
const (
	InboxFilterBase = "in:inbox category:primary"
	AgentFilterBase = "in:inbox"
)

const (
	// DefaultListSize is what the gateway lists when the caller does not say.
	DefaultListSize = 20
	// ClientPageSize is what the client asks for per page.
	ClientPageSize = 100
	// MinMessageIdLength rejects obviously bogus ids before calling Gmail.
	MinMessageIdLength = 5
)

const (
	SessionCookie = "mailpilot_session"
	StateCookie   = "mailpilot_oauth_state"
	SessionKeyLen = 24
)

const NoSubject = "(no subject)"
