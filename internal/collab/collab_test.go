package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestDemoClassifier(t *testing.T) {
	c := NewDemoClassifier()
	ctx := context.Background()

	in := domain.ReceiptInput{
		UserID:   "user-001",
		Filename: "office_depot_receipt.pdf",
		Content:  []byte("receipt bytes"),
	}

	record, err := c.ClassifyReceipt(ctx, in)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if record.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", record.Confidence)
	}
	if record.Merchant != "office depot receipt" {
		t.Errorf("unexpected merchant: %s", record.Merchant)
	}
	if record.Amount <= 0 {
		t.Errorf("expected positive amount, got %v", record.Amount)
	}

	// Same content yields the same amount.
	again, _ := c.ClassifyReceipt(ctx, in)
	if again.Amount != record.Amount {
		t.Errorf("expected deterministic amount, got %v vs %v", again.Amount, record.Amount)
	}
}

func TestDemoClassifierValidation(t *testing.T) {
	c := NewDemoClassifier()
	ctx := context.Background()

	if _, err := c.ClassifyReceipt(ctx, domain.ReceiptInput{Filename: "x.pdf", Content: []byte("y")}); err == nil {
		t.Error("expected error for missing user id")
	}
	if _, err := c.ClassifyReceipt(ctx, domain.ReceiptInput{UserID: "u", Filename: "x.pdf"}); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestSimpleInvoicerCreate(t *testing.T) {
	inv := NewSimpleInvoicer(nil)
	ctx := context.Background()

	draft := &domain.InvoiceDraft{
		UserID:      "user-001",
		ClientName:  "Acme Corp",
		ClientEmail: "billing@acme.example",
		Items: []domain.LineItem{
			{Description: "Consulting", Quantity: 10, UnitPrice: 150},
			{Description: "Support", Quantity: 1, UnitPrice: 500},
		},
		TaxRate: 0.1,
	}

	record, err := inv.CreateInvoice(ctx, draft)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if record.Status != domain.InvoiceDraftReady {
		t.Errorf("expected draft status, got %s", record.Status)
	}
	if record.Subtotal != 2000 {
		t.Errorf("expected subtotal 2000, got %v", record.Subtotal)
	}
	if record.TaxAmount != 200 {
		t.Errorf("expected tax 200, got %v", record.TaxAmount)
	}
	if record.TotalAmount != 2200 {
		t.Errorf("expected total 2200, got %v", record.TotalAmount)
	}
	if record.InvoiceNumber == "" {
		t.Error("expected invoice number")
	}

	if err := inv.SendInvoice(ctx, record.InvoiceID); err != nil {
		t.Errorf("send failed: %v", err)
	}
}

func TestSimpleInvoicerIncomplete(t *testing.T) {
	inv := NewSimpleInvoicer(nil)

	record, err := inv.CreateInvoice(context.Background(), &domain.InvoiceDraft{
		UserID: "user-001",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if record.Status != domain.InvoiceIncomplete {
		t.Errorf("expected incomplete status, got %s", record.Status)
	}
	if len(record.MissingFields) != 2 {
		t.Errorf("expected 2 missing fields, got %v", record.MissingFields)
	}
	if record.InvoiceID != "" {
		t.Error("incomplete invoice must not be assigned an id")
	}
}

func TestSimpleInvoicerSendUnknown(t *testing.T) {
	inv := NewSimpleInvoicer(nil)
	if err := inv.SendInvoice(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown invoice id")
	}
}

func TestStaticForecaster(t *testing.T) {
	f := NewStaticForecaster(nil)
	ctx := context.Background()

	forecast, err := f.GenerateForecast(ctx, "user-001")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if forecast.HorizonDays != 30 || len(forecast.Points) != 30 {
		t.Errorf("expected 30-day horizon, got %d points", len(forecast.Points))
	}
	for _, p := range forecast.Points {
		if p.Lower > p.Expected || p.Expected > p.Upper {
			t.Errorf("band violation at %s: %v <= %v <= %v", p.Date, p.Lower, p.Expected, p.Upper)
		}
	}

	// Same user, same day: identical curve.
	again, _ := f.GenerateForecast(ctx, "user-001")
	if again.Points[0].Expected != forecast.Points[0].Expected {
		t.Error("expected deterministic forecast for same user")
	}

	if err := f.RefreshForecast(ctx, "user-001", &domain.ExpenseRecord{Amount: 120}); err != nil {
		t.Errorf("refresh failed: %v", err)
	}
}

func TestHTTPWebhook(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewHTTPWebhook(2*time.Second, nil)
	err := wh.Trigger(context.Background(), srv.URL, map[string]string{"event": "invoice.created"})
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if received["event"] != "invoice.created" {
		t.Errorf("unexpected payload: %v", received)
	}
}

func TestHTTPWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewHTTPWebhook(2*time.Second, nil)
	if err := wh.Trigger(context.Background(), srv.URL, map[string]string{}); err == nil {
		t.Error("expected error for 500 response")
	}
	if err := wh.Trigger(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty url")
	}
}
