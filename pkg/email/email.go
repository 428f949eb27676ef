package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const resendEndpoint = "https://api.resend.com/emails"

// Message is a rendered email ready to send.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender posts messages to the Resend HTTP API.
type ResendSender struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewResendSender(apiKey string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	return &ResendSender{
		apiKey:   apiKey,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("resend API error: status %d: %s", resp.StatusCode, body)
	}
	log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

// LogSender only logs, for environments without an email provider.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email not sent, no provider configured")
	return nil
}

type Service struct {
	sender    Sender
	from      string
	templates *template.Template
}

func NewService(sender Sender, from string) (*Service, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %w", err)
	}
	return &Service{sender: sender, from: from, templates: templates}, nil
}

func (s *Service) sendTemplate(ctx context.Context, to, subject, templateName string, data interface{}) error {
	if to == "" {
		return fmt.Errorf("%s: no recipient", templateName)
	}
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}
	return s.sender.Send(ctx, Message{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	})
}

type WelcomeData struct {
	Name string
	Role string
}

func (s *Service) SendWelcome(ctx context.Context, to string, data WelcomeData) error {
	return s.sendTemplate(ctx, to, "Bienvenue sur DiniDesk", "welcome.html", data)
}

// SubscriptionData describes one customer subscription. Amounts are
// preformatted with their currency.
type SubscriptionData struct {
	CustomerName  string
	Platform      string
	PlanName      string
	Profiles      []string
	StartDate     time.Time
	EndDate       time.Time
	Price         string
	InvoiceNumber string
	DaysLeft      int
}

func (s *Service) SendSubscriptionStarted(ctx context.Context, to string, data SubscriptionData) error {
	subject := fmt.Sprintf("Votre abonnement %s est actif", data.Platform)
	return s.sendTemplate(ctx, to, subject, "subscription_started.html", data)
}

func (s *Service) SendSubscriptionCancelled(ctx context.Context, to string, data SubscriptionData) error {
	subject := fmt.Sprintf("Votre abonnement %s a été annulé", data.Platform)
	return s.sendTemplate(ctx, to, subject, "subscription_cancelled.html", data)
}

func (s *Service) SendSubscriptionExpiryWarning(ctx context.Context, to string, data SubscriptionData) error {
	subject := fmt.Sprintf("Votre abonnement %s expire dans %d jour(s)", data.Platform, data.DaysLeft)
	return s.sendTemplate(ctx, to, subject, "subscription_expiry_warning.html", data)
}

type AccountLine struct {
	Name           string
	Platform       string
	ExpirationDate time.Time
	DaysLeft       int
}

type AccountExpiryData struct {
	Accounts []AccountLine
}

func (s *Service) SendAccountExpiry(ctx context.Context, to string, data AccountExpiryData) error {
	subject := fmt.Sprintf("%d compte(s) arrivent à expiration", len(data.Accounts))
	return s.sendTemplate(ctx, to, subject, "account_expiry.html", data)
}

type RevenueDigestData struct {
	Start         time.Time
	End           time.Time
	Sales         string
	Subscriptions string
	Expenses      string
	NetProfit     string
	NewCustomers  int64
}

func (s *Service) SendRevenueDigest(ctx context.Context, to string, data RevenueDigestData) error {
	subject := fmt.Sprintf("Rapport hebdomadaire du %s", data.Start.Format("02/01/2006"))
	return s.sendTemplate(ctx, to, subject, "revenue_digest.html", data)
}
