package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lowercase lifecycle status reported by the payment gateway
type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsKnown reports whether the status is one the gateway documents
func (s PaymentStatus) IsKnown() bool {
	switch s {
	case PaymentStatusCreated, PaymentStatusAuthorized, PaymentStatusCaptured,
		PaymentStatusRefunded, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// NormalizeStatus trims and lower-cases a status so comparisons are case-insensitive
func NormalizeStatus(s string) PaymentStatus {
	return PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
}

// subunitExponent converts gateway subunits (paise) to major units
const subunitExponent = -2

// UPIDetails carries the UPI context the gateway attaches to UPI payments
type UPIDetails struct {
	VPA  string `json:"vpa,omitempty"`
	Flow string `json:"flow,omitempty"`
}

// AcquirerData carries acquirer reference numbers
type AcquirerData struct {
	RRN      string `json:"rrn,omitempty"`
	ARN      string `json:"authentication_reference_number,omitempty"`
	AuthCode string `json:"auth_code,omitempty"`
}

// Payment is a payment record as returned by the gateway's list endpoint.
// Only ID and Status take part in matching; everything else is carried through
// for reporting.
type Payment struct {
	ID               string          `json:"id"`
	Entity           string          `json:"entity,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	OrderID          string          `json:"order_id,omitempty"`
	InvoiceID        string          `json:"invoice_id,omitempty"`
	International    bool            `json:"international"`
	Method           string          `json:"method,omitempty"`
	AmountRefunded   decimal.Decimal `json:"amount_refunded"`
	RefundStatus     string          `json:"refund_status,omitempty"`
	Captured         bool            `json:"captured"`
	Description      string          `json:"description,omitempty"`
	CardID           string          `json:"card_id,omitempty"`
	Bank             string          `json:"bank,omitempty"`
	Wallet           string          `json:"wallet,omitempty"`
	VPA              string          `json:"vpa,omitempty"`
	Email            string          `json:"email,omitempty"`
	Contact          string          `json:"contact,omitempty"`
	Notes            json.RawMessage `json:"notes,omitempty"`
	Fee              decimal.Decimal `json:"fee"`
	Tax              decimal.Decimal `json:"tax"`
	ErrorCode        string          `json:"error_code,omitempty"`
	ErrorDescription string          `json:"error_description,omitempty"`
	CreatedAt        int64           `json:"created_at"`
	UPI              *UPIDetails     `json:"upi,omitempty"`
	AcquirerData     *AcquirerData   `json:"acquirer_data,omitempty"`
}

// DisplayAmount returns the amount in major units, e.g. 148500 paise -> 1485.00
func (p *Payment) DisplayAmount() string {
	return p.Amount.Shift(subunitExponent).StringFixed(2)
}

// MajorAmount returns the amount in major units as a decimal
func (p *Payment) MajorAmount() decimal.Decimal {
	return p.Amount.Shift(subunitExponent)
}

// CreatedTime returns the creation timestamp, or the zero time if unknown
func (p *Payment) CreatedTime() time.Time {
	if p.CreatedAt == 0 {
		return time.Time{}
	}
	return time.Unix(p.CreatedAt, 0)
}

// PayerVPA returns the VPA from the root record or from the UPI block
func (p *Payment) PayerVPA() string {
	if p.VPA != "" {
		return p.VPA
	}
	if p.UPI != nil {
		return p.UPI.VPA
	}
	return ""
}

// HasStatus compares the payment status case-insensitively
func (p *Payment) HasStatus(status string) bool {
	return NormalizeStatus(string(p.Status)) == NormalizeStatus(status)
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Status: %s, Amount: %s %s}",
		p.ID, p.Status, p.DisplayAmount(), p.Currency)
}

// PaymentPage is one page of the gateway's collection response
type PaymentPage struct {
	Entity string     `json:"entity,omitempty"`
	Count  int        `json:"count"`
	Items  []*Payment `json:"items"`
}
