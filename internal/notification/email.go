package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"societyledger/internal/config"
)

// EmailSender posts messages to an HTTP mail relay: POST {ServiceURL}/send
type EmailSender struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{
		endpoint: strings.TrimRight(cfg.ServiceURL, "/") + "/send",
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *EmailSender) Name() string { return "email" }

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return nil
	}

	payload, err := composeEmail(msg)
	if err != nil {
		return err
	}
	payload.From = s.from
	payload.To = msg.Recipients

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

var emailHTML = template.Must(template.New("email").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #333;">{{.Subject}}</h2>
<p>{{.Intro}}</p>
<div style="background-color: #f5f5f5; padding: 20px; border-radius: 5px; margin: 20px 0;">
{{range .Lines}}<p><strong>{{.Label}}:</strong> {{.Value}}</p>
{{end}}</div>
{{if .Link}}<p><a href="{{.Link}}" style="background-color: #2d6cdf; color: #fff; padding: 10px 18px; border-radius: 4px; text-decoration: none;">Accept invitation</a></p>
{{end}}<p>{{.Footer}}</p>
</div>`))

const billFooter = "Please review this bill in the Society Ledger system."

type emailLine struct {
	Label string
	Value string
}

func composeEmail(msg Message) (emailPayload, error) {
	society := msg.SocietyName
	if society == "" {
		society = "your society"
	}

	var subject, intro, link string
	footer := billFooter
	billLines := []emailLine{
		{"Vendor", msg.VendorName},
		{"Amount", msg.Amount},
		{"Nature", msg.TransactionNature},
		{"Due Date", msg.DueDate.UTC().Format("02 Jan 2006")},
	}
	var lines []emailLine
	switch msg.Type {
	case BillCreated:
		subject = "New Expense Added - " + society
		intro = "A new expense has been added to " + society + ":"
		lines = billLines
	case RemarkAdded:
		subject = "New Remark on Bill - " + society
		intro = "A new remark was added to a bill of " + society + ":"
		lines = append(billLines, emailLine{"Status", msg.Status})
		if msg.PreviousStatus != "" && msg.PreviousStatus != msg.Status {
			lines = append(lines, emailLine{"Previous Status", msg.PreviousStatus})
		}
		lines = append(lines, emailLine{"Remark", msg.Remark}, emailLine{"By", msg.ActorRole})
	case MemberInvited:
		if msg.AcceptURL == "" {
			return emailPayload{}, fmt.Errorf("invitation for %s has no accept link", msg.InviteEmail)
		}
		subject = "You're invited to join " + society
		intro = "You have been invited to join " + society + " on Society Ledger:"
		lines = []emailLine{{"Role", msg.InviteRole}, {"Email", msg.InviteEmail}}
		if msg.InviteExpiresAt != nil {
			lines = append(lines, emailLine{"Expires", msg.InviteExpiresAt.UTC().Format("02 Jan 2006 15:04 MST")})
		}
		link = msg.AcceptURL
		footer = "If you did not expect this invitation you can ignore this email."
	default:
		return emailPayload{}, fmt.Errorf("no email template for event %q", msg.Type)
	}

	var text strings.Builder
	text.WriteString(intro + "\n\n")
	for _, l := range lines {
		text.WriteString(l.Label + ": " + l.Value + "\n")
	}
	if link != "" {
		text.WriteString("\nAccept the invitation: " + link + "\n")
	}
	text.WriteString("\n" + footer + "\n")

	var html bytes.Buffer
	err := emailHTML.Execute(&html, struct {
		Subject string
		Intro   string
		Lines   []emailLine
		Link    string
		Footer  string
	}{subject, intro, lines, link, footer})
	if err != nil {
		return emailPayload{}, fmt.Errorf("render email: %w", err)
	}

	return emailPayload{Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
