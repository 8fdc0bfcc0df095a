package email

import (
	"fmt"
	"strings"

	"chatlens/internal/models"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// sender is the part of the SendGrid client the service uses
type sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// ReportService mails daily insights reports via SendGrid
type ReportService struct {
	client    sender
	from      string
	recipient string
}

// NewReportService creates the mailer. Enabled reports false when the API key or recipient is missing.
func NewReportService(apiKey, from, recipient string) *ReportService {
	s := &ReportService{from: from, recipient: recipient}
	if apiKey != "" {
		s.client = sendgrid.NewSendClient(apiKey)
	}
	return s
}

// Enabled reports whether reports can be sent
func (s *ReportService) Enabled() bool {
	return s.client != nil && s.recipient != ""
}

// SendDailyReport mails the report to the configured recipient
func (s *ReportService) SendDailyReport(report *models.DailyInsights) error {
	if !s.Enabled() {
		return fmt.Errorf("SendGrid report delivery not configured")
	}

	from := mail.NewEmail("Chatlens Insights", s.from)
	to := mail.NewEmail("Support Leads", s.recipient)
	subject := fmt.Sprintf("Daily support insights - %s", report.WorkDay)
	body := RenderReport(report)

	message := mail.NewSingleEmail(from, subject, to, body, "")
	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return nil
}

// RenderReport formats the report as plain text
func RenderReport(r *models.DailyInsights) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Support insights for work day %s\n", r.WorkDay)
	fmt.Fprintf(&b, "Period: %s to %s\n\n", r.Period.Start.Format("2006-01-02 15:04"), r.Period.End.Format("2006-01-02 15:04 MST"))

	s := r.Summary
	fmt.Fprintf(&b, "Conversations: %d\n", s.TotalConversations)
	fmt.Fprintf(&b, "Resolved: %d (%.2f%%)\n", s.ResolvedConversations, s.ResolutionRate)
	fmt.Fprintf(&b, "Analyzed: %d (%.2f%%)\n", s.EnrichedConversations, s.EnrichmentRate)
	fmt.Fprintf(&b, "With attachments: %d (%.2f%%)\n", s.WithAttachments, s.AttachmentRate)
	if s.AvgFirstResponseMinutes != nil {
		fmt.Fprintf(&b, "Average first response: %.2f minutes\n", *s.AvgFirstResponseMinutes)
	}
	fmt.Fprintf(&b, "Average satisfaction: %.2f/5\n", r.CustomerInsights.AvgSatisfaction)

	writeTable(&b, "Main needs", r.CustomerInsights.MainNeeds)
	writeTable(&b, "Pain points", r.CustomerInsights.PainPoints)
	writeTable(&b, "Technical issues", r.CustomerInsights.TechnicalIssues)

	b.WriteString("\nRecommendations:\n")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	return b.String()
}

func writeTable(b *strings.Builder, title string, entries []models.FrequencyEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, e := range entries {
		fmt.Fprintf(b, "  %3d  %s\n", e.Count, e.Value)
	}
}
