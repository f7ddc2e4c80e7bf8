package gmail

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// SummaryMessage is the content of a post-meeting summary email.
type SummaryMessage struct {
	To           string
	ToName       string
	MeetingTitle string
	MeetingDate  time.Time
	Summary      string
	ActionItems  []string
	MeetingURL   string
}

func (m SummaryMessage) subject() string {
	title := m.MeetingTitle
	if title == "" {
		title = "Untitled Meeting"
	}
	return "Meeting summary: " + title
}

var summaryHTML = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2937">
<h2>{{.Title}}</h2>
<p style="color:#6b7280">{{.Date}}</p>
<h3>Summary</h3>
<p>{{.Summary}}</p>
{{if .ActionItems}}<h3>Action items</h3>
<ul>{{range .ActionItems}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .URL}}<p><a href="{{.URL}}">Open meeting</a></p>{{end}}
</body></html>`))

func (m SummaryMessage) plainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", nonEmpty(m.ToName, "there"))
	fmt.Fprintf(&b, "Here is the summary of %q (%s).\n\n", nonEmpty(m.MeetingTitle, "Untitled Meeting"), m.MeetingDate.Format("Jan 2, 2006"))
	b.WriteString(m.Summary)
	b.WriteString("\n")
	if len(m.ActionItems) > 0 {
		b.WriteString("\nAction items:\n")
		for _, item := range m.ActionItems {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	if m.MeetingURL != "" {
		fmt.Fprintf(&b, "\nOpen the meeting: %s\n", m.MeetingURL)
	}
	return b.String()
}

// BuildSummaryMessage renders msg as an RFC 5322 message with plain text and
// HTML alternatives.
func BuildSummaryMessage(msg SummaryMessage, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(msg.subject())
	h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline writer: %w", err)
	}

	var html bytes.Buffer
	err = summaryHTML.Execute(&html, struct {
		Title       string
		Date        string
		Summary     string
		ActionItems []string
		URL         string
	}{
		Title:       nonEmpty(msg.MeetingTitle, "Untitled Meeting"),
		Date:        msg.MeetingDate.Format("Monday, Jan 2, 2006"),
		Summary:     msg.Summary,
		ActionItems: msg.ActionItems,
		URL:         msg.MeetingURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render summary html: %w", err)
	}

	if err := writeInlinePart(tw, "text/plain", msg.plainText()); err != nil {
		return nil, err
	}
	if err := writeInlinePart(tw, "text/html", html.String()); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInlinePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
