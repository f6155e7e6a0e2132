package mailbox

import (
	"encoding/base64"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/model"
	"google.golang.org/api/gmail/v1"
)

var senderPattern = regexp.MustCompile(`^(.+?)\s*<(.+?)>$`)

// ParseSender splits a From header into display name and address.
// `"Jane Doe" <jane@x.com>` gives ("Jane Doe", "jane@x.com"); a bare value is
// returned for both.
func ParseSender(from string) (name string, email string) {
	if m := senderPattern.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(strings.ReplaceAll(m[1], `"`, "")), m[2]
	}
	return from, from
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func decodeBase64(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		// Some senders hand Gmail standard alphabet bodies.
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			slog.Debug("Failed to decode message body", "error", err)
			return ""
		}
	}
	return string(decoded)
}

func partData(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	return decodeBase64(part.Body.Data)
}

// extractBody walks a payload depth first. The first non-empty text/plain and
// text/html found win; a nested result only fills a value that is still empty.
func extractBody(part *gmail.MessagePart) (text string, html string) {
	if part == nil {
		return "", ""
	}
	if data := partData(part); data != "" {
		if part.MimeType == "text/html" {
			html = data
		} else {
			text = data
		}
	}
	for _, child := range part.Parts {
		if child == nil {
			continue
		}
		switch {
		case child.MimeType == "text/plain" && child.Body != nil && child.Body.Data != "":
			if text == "" {
				text = partData(child)
			}
		case child.MimeType == "text/html" && child.Body != nil && child.Body.Data != "":
			if html == "" {
				html = partData(child)
			}
		case len(child.Parts) > 0:
			nestedText, nestedHtml := extractBody(child)
			if text == "" && nestedText != "" {
				text = nestedText
			}
			if html == "" && nestedHtml != "" {
				html = nestedHtml
			}
		}
	}
	return text, html
}

func toSummary(msg *gmail.Message) model.EmailSummary {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	name, email := ParseSender(getHeader(headers, "From"))
	return model.EmailSummary{
		Id:          msg.Id,
		ThreadId:    msg.ThreadId,
		Sender:      name,
		SenderEmail: email,
		Subject:     subjectOrDefault(getHeader(headers, "Subject")),
		Snippet:     msg.Snippet,
		Date:        getHeader(headers, "Date"),
		IsRead:      !slices.Contains(msg.LabelIds, constants.LabelUnread),
		Labels:      labelsOf(msg),
	}
}

func toDetail(msg *gmail.Message) model.EmailDetail {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	name, email := ParseSender(getHeader(headers, "From"))
	text, html := extractBody(msg.Payload)
	body := text
	if body == "" {
		body = html
	}
	return model.EmailDetail{
		Id:          msg.Id,
		ThreadId:    msg.ThreadId,
		Sender:      name,
		SenderEmail: email,
		To:          getHeader(headers, "To"),
		Cc:          getHeader(headers, "Cc"),
		Subject:     subjectOrDefault(getHeader(headers, "Subject")),
		Body:        body,
		BodyHtml:    html,
		Date:        getHeader(headers, "Date"),
		IsRead:      !slices.Contains(msg.LabelIds, constants.LabelUnread),
		Labels:      labelsOf(msg),
	}
}

func subjectOrDefault(subject string) string {
	if subject == "" {
		return constants.NoSubject
	}
	return subject
}

func labelsOf(msg *gmail.Message) []string {
	if msg.LabelIds == nil {
		return []string{}
	}
	return msg.LabelIds
}
