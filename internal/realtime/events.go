package realtime

import (
	"encoding/json"
	"fmt"

	"esnafpanel-core/internal/notify"
)

// Event is the closed set of server-pushed message variants. Topics
// outside this set decode to (nil, false) and are ignored by design.
type Event interface {
	Topic() string
}

// Inbound topic vocabulary.
const (
	TopicNotificationNew  = "notification:new"
	TopicInvoiceCreated   = "invoice:created"
	TopicInvoiceUpdate    = "invoice:update"
	TopicPaymentReceived  = "payment:received"
	TopicPaymentUpdate    = "payment:update"
	TopicTaxReminder      = "tax:reminder"
	TopicGIBStatus        = "gib:status"
	TopicConnectionStatus = "connection:status"
)

// NotificationEvent is a fully-formed alert pushed by the backend.
type NotificationEvent struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ActionURL   string `json:"actionUrl,omitempty"`
	ActionLabel string `json:"actionLabel,omitempty"`
}

func (NotificationEvent) Topic() string { return TopicNotificationNew }

type InvoiceCreatedEvent struct {
	InvoiceID string  `json:"invoiceId"`
	Number    string  `json:"number"`
	Customer  string  `json:"customer,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

func (InvoiceCreatedEvent) Topic() string { return TopicInvoiceCreated }

type InvoiceUpdatedEvent struct {
	InvoiceID string `json:"invoiceId"`
	Number    string `json:"number"`
	Status    string `json:"status"`
}

func (InvoiceUpdatedEvent) Topic() string { return TopicInvoiceUpdate }

type PaymentReceivedEvent struct {
	PaymentID string  `json:"paymentId"`
	InvoiceID string  `json:"invoiceId,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

func (PaymentReceivedEvent) Topic() string { return TopicPaymentReceived }

type PaymentUpdatedEvent struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

func (PaymentUpdatedEvent) Topic() string { return TopicPaymentUpdate }

type TaxReminderEvent struct {
	Name     string `json:"name"`
	DueDate  string `json:"dueDate"`
	DaysLeft int    `json:"daysLeft"`
}

func (TaxReminderEvent) Topic() string { return TopicTaxReminder }

// GIBStatusEvent reports the e-invoice integration status (GİB is the
// Turkish revenue administration).
type GIBStatusEvent struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

func (GIBStatusEvent) Topic() string { return TopicGIBStatus }

// ConnectionStatusEvent updates the connectivity indicator; it never
// becomes a notification.
type ConnectionStatusEvent struct {
	Status string `json:"status"`
}

func (ConnectionStatusEvent) Topic() string { return TopicConnectionStatus }

// DecodeEvent maps an inbound socket event onto its variant. Unrecognized
// topics return ok=false: the explicit ignore case.
func DecodeEvent(name string, args []json.RawMessage) (Event, bool) {
	var payload json.RawMessage
	if len(args) > 0 {
		payload = args[0]
	} else {
		payload = json.RawMessage("{}")
	}

	decode := func(out Event) (Event, bool) {
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, false
		}
		return out, true
	}

	switch name {
	case TopicNotificationNew:
		return decode(&NotificationEvent{})
	case TopicInvoiceCreated:
		return decode(&InvoiceCreatedEvent{})
	case TopicInvoiceUpdate:
		return decode(&InvoiceUpdatedEvent{})
	case TopicPaymentReceived:
		return decode(&PaymentReceivedEvent{})
	case TopicPaymentUpdate:
		return decode(&PaymentUpdatedEvent{})
	case TopicTaxReminder:
		return decode(&TaxReminderEvent{})
	case TopicGIBStatus:
		return decode(&GIBStatusEvent{})
	case TopicConnectionStatus:
		return decode(&ConnectionStatusEvent{})
	default:
		return nil, false
	}
}

// Dispatch maps one event onto its fixed notification template. It
// reports whether an entry was inserted.
func Dispatch(ev Event, center *notify.Center) bool {
	switch e := ev.(type) {
	case *NotificationEvent:
		center.Add(notify.Input{
			Severity:    severityFrom(e.Type),
			Title:       e.Title,
			Message:     e.Message,
			ActionURL:   e.ActionURL,
			ActionLabel: e.ActionLabel,
		})
	case *InvoiceCreatedEvent:
		center.Add(notify.Input{
			Severity:    notify.SeverityInfo,
			Title:       "Yeni Fatura",
			Message:     fmt.Sprintf("%s numaralı fatura oluşturuldu", e.Number),
			ActionURL:   "/faturalar/" + e.InvoiceID,
			ActionLabel: "Faturayı Gör",
		})
	case *InvoiceUpdatedEvent:
		center.Add(notify.Input{
			Severity:  notify.SeverityInfo,
			Title:     "Fatura Güncellendi",
			Message:   fmt.Sprintf("%s numaralı faturanın durumu: %s", e.Number, e.Status),
			ActionURL: "/faturalar/" + e.InvoiceID,
		})
	case *PaymentReceivedEvent:
		center.Add(notify.Input{
			Severity: notify.SeveritySuccess,
			Title:    "Ödeme Alındı",
			Message:  fmt.Sprintf("%.2f %s tutarında ödeme alındı", e.Amount, e.Currency),
		})
	case *PaymentUpdatedEvent:
		center.Add(notify.Input{
			Severity: notify.SeverityInfo,
			Title:    "Ödeme Güncellendi",
			Message:  fmt.Sprintf("Ödemenin yeni durumu: %s", e.Status),
		})
	case *TaxReminderEvent:
		center.Add(notify.Input{
			Severity: notify.SeverityWarning,
			Title:    "Vergi Hatırlatması",
			Message:  fmt.Sprintf("%s için son gün %s (%d gün kaldı)", e.Name, e.DueDate, e.DaysLeft),
		})
	case *GIBStatusEvent:
		center.Add(notify.Input{
			Severity: gibSeverity(e.Status),
			Title:    "GİB Entegrasyon Durumu",
			Message:  fmt.Sprintf("%s: %s", e.Service, statusMessage(e)),
		})
	default:
		return false
	}
	return true
}

func severityFrom(t string) notify.Severity {
	switch t {
	case "success":
		return notify.SeveritySuccess
	case "error":
		return notify.SeverityError
	case "warning":
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}

func gibSeverity(status string) notify.Severity {
	switch status {
	case "down", "error":
		return notify.SeverityError
	case "degraded":
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}

func statusMessage(e *GIBStatusEvent) string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Status
}
