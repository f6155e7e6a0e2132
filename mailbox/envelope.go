package mailbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"
)

// buildRawMessage renders msg as a single part text/plain message, base64url
// encoded without padding as Gmail's raw field expects.
func buildRawMessage(msg OutgoingMessage) (string, error) {
	var h mail.Header
	h.Set("To", msg.To)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("MIME-Version", "1.0")
	if msg.InReplyTo != "" {
		h.Set("In-Reply-To", msg.InReplyTo)
		h.Set("References", msg.InReplyTo)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish message: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
