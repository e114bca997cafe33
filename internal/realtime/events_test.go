package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"esnafpanel-core/internal/notify"
)

func rawArgs(t *testing.T, v any) []json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return []json.RawMessage{data}
}

func TestDecodeEventVariants(t *testing.T) {
	ev, ok := DecodeEvent(TopicInvoiceCreated, rawArgs(t, map[string]any{
		"invoiceId": "inv-1", "number": "FTR-2026-042", "amount": 990.5,
	}))
	require.True(t, ok)
	inv, ok := ev.(*InvoiceCreatedEvent)
	require.True(t, ok)
	require.Equal(t, "inv-1", inv.InvoiceID)
	require.Equal(t, "FTR-2026-042", inv.Number)
	require.Equal(t, 990.5, inv.Amount)

	ev, ok = DecodeEvent(TopicConnectionStatus, rawArgs(t, map[string]string{"status": "online"}))
	require.True(t, ok)
	require.Equal(t, "online", ev.(*ConnectionStatusEvent).Status)

	ev, ok = DecodeEvent(TopicTaxReminder, rawArgs(t, map[string]any{
		"name": "KDV Beyannamesi", "dueDate": "2026-09-26", "daysLeft": 5,
	}))
	require.True(t, ok)
	require.Equal(t, 5, ev.(*TaxReminderEvent).DaysLeft)
}

func TestDecodeEventUnknownTopicIgnored(t *testing.T) {
	ev, ok := DecodeEvent("stok:guncelleme", rawArgs(t, map[string]string{"x": "y"}))
	require.False(t, ok)
	require.Nil(t, ev)
}

func TestDecodeEventNoArgs(t *testing.T) {
	ev, ok := DecodeEvent(TopicConnectionStatus, nil)
	require.True(t, ok)
	require.Empty(t, ev.(*ConnectionStatusEvent).Status)
}

func TestDispatchTemplates(t *testing.T) {
	cases := []struct {
		name         string
		ev           Event
		wantSeverity notify.Severity
		wantTitle    string
		wantMessage  string
		wantAction   string
	}{
		{
			name:         "invoice created",
			ev:           &InvoiceCreatedEvent{InvoiceID: "inv-1", Number: "FTR-2026-042"},
			wantSeverity: notify.SeverityInfo,
			wantTitle:    "Yeni Fatura",
			wantMessage:  "FTR-2026-042 numaralı fatura oluşturuldu",
			wantAction:   "/faturalar/inv-1",
		},
		{
			name:         "invoice updated",
			ev:           &InvoiceUpdatedEvent{InvoiceID: "inv-1", Number: "FTR-2026-042", Status: "odendi"},
			wantSeverity: notify.SeverityInfo,
			wantTitle:    "Fatura Güncellendi",
			wantMessage:  "FTR-2026-042 numaralı faturanın durumu: odendi",
			wantAction:   "/faturalar/inv-1",
		},
		{
			name:         "payment received",
			ev:           &PaymentReceivedEvent{PaymentID: "pay-1", Amount: 1250, Currency: "TRY"},
			wantSeverity: notify.SeveritySuccess,
			wantTitle:    "Ödeme Alındı",
			wantMessage:  "1250.00 TRY tutarında ödeme alındı",
		},
		{
			name:         "tax reminder",
			ev:           &TaxReminderEvent{Name: "KDV Beyannamesi", DueDate: "2026-09-26", DaysLeft: 5},
			wantSeverity: notify.SeverityWarning,
			wantTitle:    "Vergi Hatırlatması",
			wantMessage:  "KDV Beyannamesi için son gün 2026-09-26 (5 gün kaldı)",
		},
		{
			name:         "gib degraded",
			ev:           &GIBStatusEvent{Service: "e-Fatura", Status: "degraded", Detail: "Yanıt süreleri yüksek"},
			wantSeverity: notify.SeverityWarning,
			wantTitle:    "GİB Entegrasyon Durumu",
			wantMessage:  "e-Fatura: Yanıt süreleri yüksek",
		},
		{
			name:         "gib down",
			ev:           &GIBStatusEvent{Service: "e-Arşiv", Status: "down"},
			wantSeverity: notify.SeverityError,
			wantTitle:    "GİB Entegrasyon Durumu",
			wantMessage:  "e-Arşiv: down",
		},
		{
			name:         "backend notification passes through",
			ev:           &NotificationEvent{Type: "error", Title: "Senkronizasyon Hatası", Message: "Tekrar denenecek", ActionURL: "/ayarlar"},
			wantSeverity: notify.SeverityError,
			wantTitle:    "Senkronizasyon Hatası",
			wantMessage:  "Tekrar denenecek",
			wantAction:   "/ayarlar",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			center := notify.NewCenter()
			require.True(t, Dispatch(tc.ev, center))

			items := center.Items()
			require.Len(t, items, 1)
			require.Equal(t, tc.wantSeverity, items[0].Severity)
			require.Equal(t, tc.wantTitle, items[0].Title)
			require.Equal(t, tc.wantMessage, items[0].Message)
			require.Equal(t, tc.wantAction, items[0].ActionURL)
			require.Equal(t, 1, center.Unread())
		})
	}
}

func TestDispatchConnectionStatusIsNotANotification(t *testing.T) {
	center := notify.NewCenter()
	require.False(t, Dispatch(&ConnectionStatusEvent{Status: "offline"}, center))
	require.Empty(t, center.Items())
}
