package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/contentlab/seo-assistant/internal/config"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	mailer mailSender
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	if cfg.NotificationEmail != "" {
		s.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

// Enabled reports whether any channel is configured
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// NotifyJob reports a finished detailed-data job on the configured channels
func (s *Service) NotifyJob(notice models.JobNotice) error {
	if !s.Enabled() {
		logrus.Debugf("No notification channel configured, skipping notice for job %s", notice.JobID)
		return nil
	}

	subject := fmt.Sprintf("SEO analysis %s - %s", notice.Outcome, notice.SessionName)
	return s.dispatch(
		func() error { return s.postToTeams(s.buildJobTeamsMessage(notice)) },
		func() error {
			html, err := renderJobHTML(notice)
			if err != nil {
				return fmt.Errorf("failed to build email HTML: %w", err)
			}
			return s.sendEmail(subject, buildJobText(notice), html)
		},
	)
}

// SendAlert sends an operational alert on the configured channels
func (s *Service) SendAlert(alert models.Alert) error {
	if !s.Enabled() {
		logrus.Infof("Alert would be sent: %s - %s", alert.Type, alert.Title)
		return nil
	}

	return s.dispatch(
		func() error { return s.postToTeams(buildAlertTeamsMessage(alert)) },
		func() error {
			text := fmt.Sprintf("%s\n\n%s\n\nAt: %s\n", alert.Title, alert.Message, alert.At.UTC().Format("2006-01-02 15:04:05 UTC"))
			return s.sendEmail("SEO Assistant alert - "+alert.Title, text, "")
		},
	)
}

func (s *Service) dispatch(teams, email func() error) error {
	var errors []string

	// Send to Teams if configured
	if s.config.TeamsWebhookURL != "" {
		if err := teams(); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent notification to Teams")
		}
	}

	// Send via email if configured
	if s.config.NotificationEmail != "" {
		if err := email(); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent notification via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildJobTeamsMessage(notice models.JobNotice) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("SEO analysis %s", notice.Outcome),
		Text:    notice.SessionName,
	}
	if notice.Outcome == models.OutcomeFailed {
		message.ThemeColor = "d13438"
	} else {
		message.ThemeColor = "107c10"
	}

	facts := []TeamsFact{
		{Name: "Job", Value: notice.JobID},
		{Name: "Session", Value: notice.SessionID},
		{Name: "Keywords", Value: fmt.Sprintf("%d", notice.Keywords)},
		{Name: "Related Posts", Value: fmt.Sprintf("%d", notice.Posts)},
		{Name: "Finished", Value: notice.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
	if notice.Detail != "" {
		facts = append(facts, TeamsFact{Name: "Detail", Value: notice.Detail})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})
	return message
}

func buildAlertTeamsMessage(alert models.Alert) *TeamsMessage {
	color := "d13438"
	if alert.Type == models.AlertServerRecovered {
		color = "107c10"
	}
	return &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: color,
		Title:      alert.Title,
		Text:       alert.Message,
	}
}

func (s *Service) sendEmail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var jobEmailTemplate = template.Must(template.New("job").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>SEO Analysis</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { color: white; padding: 20px; border-radius: 5px; }
        .completed { background-color: #107c10; }
        .failed { background-color: #d13438; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
    </style>
</head>
<body>
    <div class="header {{.Outcome}}">
        <h1>SEO analysis {{.Outcome}}</h1>
        <p>{{.SessionName}}</p>
    </div>

    <div class="summary">
        <p><strong>Job:</strong> {{.JobID}}</p>
        <p><strong>Keywords:</strong> {{.Keywords}}</p>
        <p><strong>Related Posts:</strong> {{.Posts}}</p>
        {{if .Detail}}<p><strong>Detail:</strong> {{.Detail}}</p>{{end}}
        <p><strong>Finished:</strong> {{.FinishedAt.UTC.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <hr>
    <p><small>This message was generated automatically by the SEO Assistant.</small></p>
</body>
</html>
`))

func renderJobHTML(notice models.JobNotice) (string, error) {
	var buf bytes.Buffer
	if err := jobEmailTemplate.Execute(&buf, notice); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildJobText(notice models.JobNotice) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("SEO analysis %s - %s\n", notice.Outcome, notice.SessionName))
	text.WriteString(fmt.Sprintf("Finished: %s\n\n", notice.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Job: %s\n", notice.JobID))
	text.WriteString(fmt.Sprintf("Session: %s\n", notice.SessionID))
	text.WriteString(fmt.Sprintf("Keywords: %d\n", notice.Keywords))
	text.WriteString(fmt.Sprintf("Related Posts: %d\n", notice.Posts))
	if notice.Detail != "" {
		text.WriteString(fmt.Sprintf("Detail: %s\n", notice.Detail))
	}

	text.WriteString("\n---\nThis message was generated automatically by the SEO Assistant.\n")

	return text.String()
}
