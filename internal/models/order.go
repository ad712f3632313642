package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// OrderRef is the restricted projection of an order used by reconciliation:
// the document's own ordering key and its transaction reference.
type OrderRef struct {
	ID            bson.RawValue
	OrderID       string
	TransactionID string
}

// orderRefDocument is the raw decode target for OrderRef
type orderRefDocument struct {
	ID            bson.RawValue `bson:"_id"`
	OrderID       bson.RawValue `bson:"order_id"`
	TransactionID bson.RawValue `bson:"transaction_id"`
}

// DecodeOrderRef decodes a projected order document into an OrderRef
func DecodeOrderRef(raw bson.Raw) (*OrderRef, error) {
	var doc orderRefDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode order reference: %w", err)
	}

	// the cursor buffer behind raw is not ours to keep
	id := bson.RawValue{Type: doc.ID.Type, Value: append([]byte(nil), doc.ID.Value...)}

	return &OrderRef{
		ID:            id,
		OrderID:       StringifyReference(doc.OrderID),
		TransactionID: StringifyReference(doc.TransactionID),
	}, nil
}

// StringifyReference renders a transaction reference of any BSON type as a string.
// Missing, null and falsy values yield "" so they never take part in matching.
func StringifyReference(v bson.RawValue) string {
	switch v.Type {
	case bsontype.Type(0), bsontype.Null, bsontype.Undefined:
		return ""
	case bsontype.String:
		return v.StringValue()
	case bsontype.Int32:
		if n := v.Int32(); n != 0 {
			return strconv.FormatInt(int64(n), 10)
		}
		return ""
	case bsontype.Int64:
		if n := v.Int64(); n != 0 {
			return strconv.FormatInt(n, 10)
		}
		return ""
	case bsontype.Double:
		if f := v.Double(); f != 0 {
			if f == math.Trunc(f) {
				return strconv.FormatFloat(f, 'f', 1, 64)
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.Boolean:
		return ""
	default:
		return v.String()
	}
}

// Text is a listing field that accepts any BSON type. Non-string values are
// rendered the way transaction references are, booleans as true/false.
type Text string

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (t *Text) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	*t = Text(displayText(bson.RawValue{Type: typ, Value: data}))
	return nil
}

// Flag is a boolean listing field that also accepts numbers and strings
type Flag bool

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (f *Flag) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	v := bson.RawValue{Type: typ, Value: data}
	switch typ {
	case bsontype.Boolean:
		*f = Flag(v.Boolean())
	case bsontype.Int32:
		*f = v.Int32() != 0
	case bsontype.Int64:
		*f = v.Int64() != 0
	case bsontype.Double:
		*f = v.Double() != 0
	case bsontype.String:
		switch strings.ToLower(strings.TrimSpace(v.StringValue())) {
		case "true", "yes", "1":
			*f = true
		default:
			*f = false
		}
	default:
		*f = false
	}
	return nil
}

func displayText(v bson.RawValue) string {
	if v.Type == bsontype.Boolean {
		return strconv.FormatBool(v.Boolean())
	}
	return StringifyReference(v)
}

// Order is an order document as stored in the orders collection.
// Fields are decoded leniently so one oddly typed document cannot fail a listing.
type Order struct {
	OrderID         Text          `bson:"order_id,omitempty"`
	JobID           Text          `bson:"job_id,omitempty"`
	TransactionID   Text          `bson:"transaction_id,omitempty"`
	CoverURL        Text          `bson:"cover_url,omitempty"`
	BookURL         Text          `bson:"book_url,omitempty"`
	PreviewURL      Text          `bson:"preview_url,omitempty"`
	Name            Text          `bson:"name,omitempty"`
	ShippingAddress bson.RawValue `bson:"shipping_address,omitempty"`
	CreatedAt       interface{}   `bson:"created_at,omitempty"`
	ProcessedAt     interface{}   `bson:"processed_at,omitempty"`
	ApprovedAt      interface{}   `bson:"approved_at,omitempty"`
	Approved        Flag          `bson:"approved,omitempty"`
	Paid            Flag          `bson:"paid,omitempty"`
	BookID          Text          `bson:"book_id,omitempty"`
	BookStyle       Text          `bson:"book_style,omitempty"`
	PrintStatus     Text          `bson:"print_status,omitempty"`
	Price           interface{}   `bson:"price,omitempty"`
	TotalPrice      interface{}   `bson:"total_price,omitempty"`
	Amount          interface{}   `bson:"amount,omitempty"`
	TotalAmount     interface{}   `bson:"total_amount,omitempty"`
	FeedbackEmail   Flag          `bson:"feedback_email,omitempty"`
	PrintApproval   bson.RawValue `bson:"print_approval,omitempty"`
	DiscountCode    Text          `bson:"discount_code,omitempty"`
	Currency        Text          `bson:"currency,omitempty"`
	Locale          Text          `bson:"locale,omitempty"`
}

// City returns shipping_address.city, or "" when the address is not a document
func (o *Order) City() string {
	if o.ShippingAddress.Type != bsontype.EmbeddedDocument {
		return ""
	}
	city, err := o.ShippingAddress.Document().LookupErr("city")
	if err != nil {
		return ""
	}
	return displayText(city)
}

// Order approval states as shown in listings
const (
	OrderStatusApproved = "Approved"
	OrderStatusUploaded = "Uploaded"
)

// OrderView is the listing representation of an order
type OrderView struct {
	OrderID       string      `json:"order_id"`
	JobID         string      `json:"job_id"`
	CoverPDF      string      `json:"coverPdf"`
	InteriorPDF   string      `json:"interiorPdf"`
	PreviewURL    string      `json:"previewUrl"`
	Name          string      `json:"name"`
	City          string      `json:"city"`
	Price         interface{} `json:"price"`
	PaymentDate   interface{} `json:"paymentDate"`
	ApprovalDate  interface{} `json:"approvalDate"`
	Status        string      `json:"status"`
	BookID        string      `json:"bookId"`
	BookStyle     string      `json:"bookStyle"`
	PrintStatus   string      `json:"printStatus"`
	FeedbackEmail bool        `json:"feedback_email"`
	PrintApproval *bool       `json:"print_approval"`
	DiscountCode  string      `json:"discount_code"`
	Currency      string      `json:"currency"`
	Locale        string      `json:"locale"`
}

// DisplayPrice returns the first price field present, falling back to 0
func (o *Order) DisplayPrice() interface{} {
	for _, candidate := range []interface{}{o.Price, o.TotalPrice, o.Amount, o.TotalAmount} {
		if candidate != nil {
			return candidate
		}
	}
	return 0
}

// Approval returns print_approval, or nil when it is missing or null
func (o *Order) Approval() *bool {
	switch o.PrintApproval.Type {
	case bsontype.Type(0), bsontype.Null, bsontype.Undefined:
		return nil
	}
	var approval Flag
	_ = approval.UnmarshalBSONValue(o.PrintApproval.Type, o.PrintApproval.Value)
	result := bool(approval)
	return &result
}

// View converts the stored order into its listing representation
func (o *Order) View() OrderView {
	view := OrderView{
		OrderID:       string(o.OrderID),
		JobID:         string(o.JobID),
		CoverPDF:      string(o.CoverURL),
		InteriorPDF:   string(o.BookURL),
		PreviewURL:    string(o.PreviewURL),
		Name:          string(o.Name),
		City:          o.City(),
		Price:         o.DisplayPrice(),
		PaymentDate:   emptyIfNil(o.ProcessedAt),
		ApprovalDate:  emptyIfNil(o.ApprovedAt),
		Status:        OrderStatusUploaded,
		BookID:        string(o.BookID),
		BookStyle:     string(o.BookStyle),
		PrintStatus:   string(o.PrintStatus),
		FeedbackEmail: bool(o.FeedbackEmail),
		DiscountCode:  string(o.DiscountCode),
		Currency:      string(o.Currency),
		Locale:        string(o.Locale),
	}
	if o.Approved {
		view.Status = OrderStatusApproved
	}
	view.PrintApproval = o.Approval()
	return view
}

func emptyIfNil(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}
