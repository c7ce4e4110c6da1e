package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/aidso/geo-console/internal/config"
	"github.com/aidso/geo-console/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service delivers terminal-task alerts via the configured channels
// (webhook and/or email).
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// WebhookMessage is the JSON body posted to the alert webhook.
type WebhookMessage struct {
	Title string        `json:"title"`
	Text  string        `json:"text"`
	Facts []WebhookFact `json:"facts,omitempty"`
}

type WebhookFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// TaskFinished delivers an alert for a task that reached a terminal status.
// Delivery failures are logged and dropped; the poll loop never sees them.
func (s *Service) TaskFinished(task models.Task) {
	if err := s.SendTaskAlert(task); err != nil {
		logrus.Errorf("Failed to send alert for task %s: %v", task.ID, err)
	}
}

// SendTaskAlert sends the alert to every configured channel and joins their
// failures.
func (s *Service) SendTaskAlert(task models.Task) error {
	var errors []string

	if s.config.AlertWebhookURL != "" {
		if err := s.sendToWebhook(task); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Infof("Sent webhook alert for task %s", task.ID)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(task); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Infof("Sent email alert for task %s", task.ID)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToWebhook(task models.Task) error {
	message := s.buildWebhookMessage(task)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.AlertWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to post webhook message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildWebhookMessage(task models.Task) *WebhookMessage {
	message := &WebhookMessage{
		Facts: []WebhookFact{
			{Name: "Keyword", Value: task.Keyword},
			{Name: "Search type", Value: string(task.SearchType)},
			{Name: "Models", Value: strings.Join(task.SelectedModels, ", ")},
			{Name: "Cost units", Value: fmt.Sprintf("%d", task.CostUnits)},
		},
	}

	switch task.Status {
	case models.TaskFailed:
		message.Title = fmt.Sprintf("Analysis task failed: %s", task.Keyword)
		message.Text = fmt.Sprintf("Task %s failed", task.ID)
		if reason := task.FailureReason(); reason != "" {
			message.Facts = append(message.Facts, WebhookFact{Name: "Reason", Value: reason})
		}
	default:
		message.Title = fmt.Sprintf("Analysis task completed: %s", task.Keyword)
		message.Text = fmt.Sprintf("Task %s finished successfully", task.ID)
	}

	return message
}

const emailTemplate = `
<html>
<body>
<h2>{{.Title}}</h2>
<p>Task <strong>{{.Task.ID}}</strong> for keyword <strong>{{.Task.Keyword}}</strong> has {{.Verb}}.</p>
<ul>
<li>Search type: {{.Task.SearchType}}</li>
<li>Models: {{range $i, $m := .Task.SelectedModels}}{{if $i}}, {{end}}{{$m}}{{end}}</li>
<li>Cost units: {{.Task.CostUnits}}</li>
{{if .Reason}}<li>Failure reason: {{.Reason}}</li>{{end}}
</ul>
</body>
</html>
`

func (s *Service) sendEmail(task models.Task) error {
	tmpl, err := template.New("alert").Parse(emailTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse email template: %w", err)
	}

	verb := "completed"
	title := fmt.Sprintf("Analysis complete: %s", task.Keyword)
	if task.Status == models.TaskFailed {
		verb = "failed"
		title = fmt.Sprintf("Analysis failed: %s", task.Keyword)
	}

	var body bytes.Buffer
	err = tmpl.Execute(&body, map[string]interface{}{
		"Title":  title,
		"Task":   task,
		"Verb":   verb,
		"Reason": task.FailureReason(),
	})
	if err != nil {
		return fmt.Errorf("failed to render email body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", title)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
