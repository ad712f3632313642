package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected PaymentStatus
	}{
		{"captured", PaymentStatusCaptured},
		{"  Captured ", PaymentStatusCaptured},
		{"FAILED", PaymentStatusFailed},
		{"", PaymentStatus("")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeStatus(tt.input); got != tt.expected {
				t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPaymentStatusIsKnown(t *testing.T) {
	if !PaymentStatusRefunded.IsKnown() {
		t.Error("expected refunded to be a known status")
	}
	if PaymentStatus("settled").IsKnown() {
		t.Error("expected settled to be unknown")
	}
}

func TestPaymentDecode(t *testing.T) {
	raw := `{
		"id": "pay_29QQoUBi66xm2f",
		"entity": "payment",
		"amount": 148500,
		"currency": "INR",
		"status": "captured",
		"method": "upi",
		"amount_refunded": 0,
		"captured": true,
		"card_id": null,
		"vpa": "",
		"notes": [],
		"fee": 2970,
		"tax": 453,
		"created_at": 1700000000,
		"upi": {"vpa": "someone@okbank", "flow": "collect"},
		"acquirer_data": {"rrn": "123456789012"}
	}`

	var p Payment
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if p.ID != "pay_29QQoUBi66xm2f" {
		t.Errorf("unexpected id %q", p.ID)
	}
	if !p.Amount.Equal(decimal.NewFromInt(148500)) {
		t.Errorf("unexpected amount %s", p.Amount)
	}
	if got := p.DisplayAmount(); got != "1485.00" {
		t.Errorf("DisplayAmount() = %s, want 1485.00", got)
	}
	if got := p.PayerVPA(); got != "someone@okbank" {
		t.Errorf("PayerVPA() = %s, want someone@okbank", got)
	}
	if p.AcquirerData == nil || p.AcquirerData.RRN != "123456789012" {
		t.Errorf("expected acquirer rrn to be decoded, got %+v", p.AcquirerData)
	}
	if !p.HasStatus(" CAPTURED") {
		t.Error("expected case-insensitive status match")
	}
	if p.CreatedTime().Unix() != 1700000000 {
		t.Errorf("unexpected created time %v", p.CreatedTime())
	}
}

func TestDisplayAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		expected string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{100, "1.00"},
		{149999, "1499.99"},
	}

	for _, tt := range tests {
		p := &Payment{Amount: decimal.NewFromInt(tt.amount)}
		if got := p.DisplayAmount(); got != tt.expected {
			t.Errorf("DisplayAmount(%d) = %s, want %s", tt.amount, got, tt.expected)
		}
	}
}

func TestDecodeOrderRef(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name     string
		doc      bson.D
		expected string
	}{
		{"string reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: "pay_A"}}, "pay_A"},
		{"missing reference", bson.D{{Key: "_id", Value: oid}}, ""},
		{"null reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: nil}}, ""},
		{"int reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: int32(42)}}, "42"},
		{"int64 reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: int64(9000000000)}}, "9000000000"},
		{"zero reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: int32(0)}}, ""},
		{"double reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: 12.5}}, "12.5"},
		{"integral double reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: 12.0}}, "12.0"},
		{"false reference", bson.D{{Key: "_id", Value: oid}, {Key: "transaction_id", Value: false}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}

			ref, err := DecodeOrderRef(raw)
			if err != nil {
				t.Fatalf("DecodeOrderRef() error = %v", err)
			}
			if ref.TransactionID != tt.expected {
				t.Errorf("TransactionID = %q, want %q", ref.TransactionID, tt.expected)
			}
			if got, ok := ref.ID.ObjectIDOK(); !ok || got != oid {
				t.Errorf("expected _id %s to be preserved, got %v", oid.Hex(), ref.ID)
			}
		})
	}
}

func decodeOrder(t *testing.T, doc bson.D) *Order {
	t.Helper()
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("bson.Marshal() error = %v", err)
	}
	var order Order
	if err := bson.Unmarshal(raw, &order); err != nil {
		t.Fatalf("bson.Unmarshal() error = %v", err)
	}
	return &order
}

func TestOrderView(t *testing.T) {
	order := decodeOrder(t, bson.D{
		{Key: "order_id", Value: "ORD-1"},
		{Key: "cover_url", Value: "https://cdn/cover.pdf"},
		{Key: "book_url", Value: "https://cdn/book.pdf"},
		{Key: "shipping_address", Value: bson.D{{Key: "city", Value: "Pune"}}},
		{Key: "total_price", Value: int32(1499)},
		{Key: "processed_at", Value: "2024-01-15T10:30:00Z"},
		{Key: "approved", Value: true},
		{Key: "print_approval", Value: true},
		{Key: "discount_code", Value: "WELCOME10"},
	})

	view := order.View()

	if view.Status != OrderStatusApproved {
		t.Errorf("expected status %s, got %s", OrderStatusApproved, view.Status)
	}
	if view.CoverPDF != "https://cdn/cover.pdf" || view.InteriorPDF != "https://cdn/book.pdf" {
		t.Errorf("unexpected pdf urls: %+v", view)
	}
	if view.City != "Pune" {
		t.Errorf("expected city Pune, got %s", view.City)
	}
	if view.Price != int32(1499) {
		t.Errorf("expected total_price fallback, got %v", view.Price)
	}
	if view.PaymentDate != "2024-01-15T10:30:00Z" {
		t.Errorf("expected processed_at as payment date, got %v", view.PaymentDate)
	}
	if view.ApprovalDate != "" {
		t.Errorf("expected empty approval date, got %v", view.ApprovalDate)
	}
	if view.PrintApproval == nil || !*view.PrintApproval {
		t.Errorf("expected print approval to be carried, got %v", view.PrintApproval)
	}
	if view.DiscountCode != "WELCOME10" {
		t.Errorf("expected discount code WELCOME10, got %s", view.DiscountCode)
	}

	unapproved := (&Order{}).View()
	if unapproved.Status != OrderStatusUploaded {
		t.Errorf("expected status %s, got %s", OrderStatusUploaded, unapproved.Status)
	}
	if unapproved.Price != 0 {
		t.Errorf("expected price to fall back to 0, got %v", unapproved.Price)
	}
	if unapproved.PrintApproval != nil || unapproved.City != "" {
		t.Errorf("expected no print approval and no city, got %+v", unapproved)
	}
}

func TestOrderDecodeMixedTypes(t *testing.T) {
	oid, _ := primitive.ObjectIDFromHex("65a4f0c2e4b0a1b2c3d4e5f6")

	order := decodeOrder(t, bson.D{
		{Key: "order_id", Value: int32(1042)},
		{Key: "job_id", Value: oid},
		{Key: "book_id", Value: int64(77)},
		{Key: "name", Value: nil},
		{Key: "book_style", Value: 12.0},
		{Key: "locale", Value: true},
		{Key: "shipping_address", Value: "Pune"},
		{Key: "approved", Value: int32(1)},
		{Key: "feedback_email", Value: "yes"},
		{Key: "print_approval", Value: nil},
	})

	view := order.View()

	tests := []struct {
		field    string
		got      interface{}
		expected interface{}
	}{
		{"order_id", view.OrderID, "1042"},
		{"job_id", view.JobID, "65a4f0c2e4b0a1b2c3d4e5f6"},
		{"book_id", view.BookID, "77"},
		{"name", view.Name, ""},
		{"book_style", view.BookStyle, "12.0"},
		{"locale", view.Locale, "true"},
		{"city", view.City, ""},
		{"status", view.Status, OrderStatusApproved},
		{"feedback_email", view.FeedbackEmail, true},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %v, want %v", tt.field, tt.got, tt.expected)
		}
	}
	if view.PrintApproval != nil {
		t.Errorf("expected null print approval to stay nil, got %v", *view.PrintApproval)
	}

	numeric := decodeOrder(t, bson.D{{Key: "print_approval", Value: int32(0)}}).View()
	if numeric.PrintApproval == nil || *numeric.PrintApproval {
		t.Errorf("expected print approval 0 to read as false, got %v", numeric.PrintApproval)
	}
}

func TestFlagDecode(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"one", int32(1), true},
		{"zero", int64(0), false},
		{"double", 0.5, true},
		{"yes string", " Yes ", true},
		{"no string", "no", false},
		{"null", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := decodeOrder(t, bson.D{{Key: "approved", Value: tt.value}})
			if bool(order.Approved) != tt.expected {
				t.Errorf("approved = %v, want %v", order.Approved, tt.expected)
			}
		})
	}
}

func TestParseTimeWithFormats(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		name      string
		input     string
		expected  time.Time
		wantError bool
	}{
		{"date only", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"rfc3339 keeps its zone", "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"naive timestamp", "2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, ist), false},
		{"padded input", "  2024-01-15  ", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"month name", "Jan 15, 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"space separated with offset", "2024-01-15 10:00:00+05:30", time.Date(2024, 1, 15, 10, 0, 0, 0, ist), false},
		{"space separated utc", "2024-01-15 10:00:00Z", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), false},
		{"minutes with offset", "2024-01-15T10:00+05:30", time.Date(2024, 1, 15, 10, 0, 0, 0, ist), false},
		{"offset without colon", "2024-01-15T10:00:00+0530", time.Date(2024, 1, 15, 10, 0, 0, 0, ist), false},
		{"fractional seconds with offset", "2024-01-15T10:00:00.250-0100", time.Date(2024, 1, 15, 11, 0, 0, 250000000, time.UTC), false},
		{"basic date", "20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"basic timestamp", "20240115T103000", time.Date(2024, 1, 15, 10, 30, 0, 0, ist), false},
		{"day first long month", "15 January 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"long month without comma", "January 15 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"dashed short month", "15-Jan-2024", time.Date(2024, 1, 15, 0, 0, 0, 0, ist), false},
		{"bad month", "2024-13-15", time.Time{}, true},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday-ish", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeWithFormats(tt.input, ist)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseTimeWithFormats() error = %v, wantError %v", err, tt.wantError)
			}
			if !tt.wantError && !got.Equal(tt.expected) {
				t.Errorf("ParseTimeWithFormats() = %v, want %v", got, tt.expected)
			}
		})
	}
}
