package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LogNotifier records notifications in the structured log instead of
// delivering them. Stands in for email/SMS senders.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates the bundled notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendFraudAlert implements domain.Notifier.
func (n *LogNotifier) SendFraudAlert(ctx context.Context, userID string, alert *domain.Alert) error {
	n.logger.Warn("fraud alert notification",
		"user_id", userID,
		"alert_id", alert.ID,
		"alert_type", alert.Type,
		"severity", alert.Severity)
	return nil
}

// SendForecastReport implements domain.Notifier.
func (n *LogNotifier) SendForecastReport(ctx context.Context, userID string, f *domain.Forecast) error {
	n.logger.Info("forecast report notification",
		"user_id", userID,
		"forecast_id", f.ForecastID,
		"horizon_days", f.HorizonDays)
	return nil
}

// LogGate records transaction blocks instead of calling a payment gateway.
type LogGate struct {
	logger *slog.Logger
}

// NewLogGate creates the bundled transaction gate.
func NewLogGate(logger *slog.Logger) *LogGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGate{logger: logger}
}

// BlockTransaction implements domain.TransactionGate.
func (g *LogGate) BlockTransaction(ctx context.Context, transactionID string) error {
	g.logger.Warn("transaction blocked", "transaction_id", transactionID)
	return nil
}

// LogCRM records invoice activity in the log instead of a CRM system.
type LogCRM struct {
	logger *slog.Logger
}

// NewLogCRM creates the bundled CRM recorder.
func NewLogCRM(logger *slog.Logger) *LogCRM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCRM{logger: logger}
}

// RecordInvoice implements domain.CRM.
func (c *LogCRM) RecordInvoice(ctx context.Context, inv *domain.InvoiceRecord) error {
	c.logger.Info("invoice recorded in CRM",
		"invoice_id", inv.InvoiceID,
		"invoice_number", inv.InvoiceNumber,
		"client", inv.ClientName,
		"total", inv.TotalAmount)
	return nil
}

// LogDashboard records forecast publications in the log.
type LogDashboard struct {
	logger *slog.Logger
}

// NewLogDashboard creates the bundled dashboard publisher.
func NewLogDashboard(logger *slog.Logger) *LogDashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDashboard{logger: logger}
}

// PublishForecast implements domain.Dashboard.
func (d *LogDashboard) PublishForecast(ctx context.Context, userID string, f *domain.Forecast) error {
	d.logger.Info("forecast published to dashboard",
		"user_id", userID,
		"forecast_id", f.ForecastID)
	return nil
}

// HTTPWebhook delivers workflow events to external endpoints as JSON POSTs.
type HTTPWebhook struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPWebhook creates a webhook client with a bounded request timeout.
func NewHTTPWebhook(timeout time.Duration, logger *slog.Logger) *HTTPWebhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPWebhook{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Trigger implements domain.WebhookClient.
func (w *HTTPWebhook) Trigger(ctx context.Context, url string, payload any) error {
	if url == "" {
		return fmt.Errorf("webhook url is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	w.logger.Debug("webhook delivered", "url", url, "status", resp.StatusCode)
	return nil
}

// Compile-time interface checks.
var (
	_ domain.Classifier      = (*DemoClassifier)(nil)
	_ domain.Invoicer        = (*SimpleInvoicer)(nil)
	_ domain.Forecaster      = (*StaticForecaster)(nil)
	_ domain.Notifier        = (*LogNotifier)(nil)
	_ domain.TransactionGate = (*LogGate)(nil)
	_ domain.CRM             = (*LogCRM)(nil)
	_ domain.Dashboard       = (*LogDashboard)(nil)
	_ domain.WebhookClient   = (*HTTPWebhook)(nil)
)
