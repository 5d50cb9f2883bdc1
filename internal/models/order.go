package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderPending    = "pending"
	OrderConfirmed  = "confirmed"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

// Payment statuses (order-level).
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Canonical payment methods.
const (
	MethodCOD        = "cod"
	MethodUPI        = "upi"
	MethodCard       = "card"
	MethodNetbanking = "netbanking"
)

// Order is an immutable-after-creation record of a purchase.
type Order struct {
	BaseModel
	UserID        uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User          *User       `json:"user,omitempty"`
	OrderNumber   string      `gorm:"uniqueIndex" json:"order_number"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	PaymentMethod string      `json:"payment_method"`
	PlacedAt      time.Time   `json:"placed_at"`
	Items         []OrderItem `json:"items,omitempty"`

	// Address snapshot, copied at order time so later profile edits do not
	// alter historical orders.
	ShipName        string `json:"ship_name"`
	ShipMobile      string `json:"ship_mobile"`
	ShipAddressLine string `json:"ship_address_line"`
	ShipApartment   string `json:"ship_apartment"`
	ShipCity        string `json:"ship_city"`
	ShipState       string `json:"ship_state"`
	ShipPostalCode  string `json:"ship_postal_code"`

	Subtotal       float64 `json:"subtotal"`
	ShippingCharge float64 `json:"shipping_charge"`
	Tax            float64 `json:"tax"`
	Discount       float64 `json:"discount"`
	TotalAmount    float64 `json:"total_amount"`
	Currency       string  `json:"currency"`

	Courier          string     `json:"courier"`
	TrackingNumber   string     `json:"tracking_number"`
	ShippedAt        *time.Time `json:"shipped_at"`
	ExpectedDelivery *time.Time `json:"expected_delivery"`
	DeliveredAt      *time.Time `json:"delivered_at"`

	CustomerNotes string   `json:"customer_notes"`
	AdminNotes    string   `json:"admin_notes"`
	Payment       *Payment `json:"payment,omitempty"`
}

// OrderItem snapshots a product line at order time.
type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID    *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName  string     `json:"product_name"`
	ProductImage string     `json:"product_image"`
	Variant      string     `json:"variant"`
	Quantity     int        `json:"quantity"`
	UnitPrice    float64    `json:"unit_price"`
	LineTotal    float64    `json:"line_total"`
}

// Payment statuses (payment-record level).
const (
	TxnPending   = "pending"
	TxnCompleted = "completed"
	TxnFailed    = "failed"
	TxnRefunded  = "refunded"
)

// Payment is the simulated payment-attempt ledger entry, one per order.
type Payment struct {
	BaseModel
	OrderID       uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"order_id"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	TransactionID string     `gorm:"uniqueIndex" json:"transaction_id"`
	PaidAt        *time.Time `json:"paid_at"`
}

var paymentMethodAliases = map[string]string{
	"cod":         MethodCOD,
	"cash":        MethodCOD,
	"upi":         MethodUPI,
	"gpay":        MethodUPI,
	"phonepe":     MethodUPI,
	"paytm":       MethodUPI,
	"card":        MethodCard,
	"credit_card": MethodCard,
	"debit_card":  MethodCard,
	"netbanking":  MethodNetbanking,
	"net_banking": MethodNetbanking,
}

// NormalizePaymentMethod folds UI-level payment choices into the four canonical
// methods. Unknown values default to upi.
func NormalizePaymentMethod(method string) string {
	if canonical, ok := paymentMethodAliases[method]; ok {
		return canonical
	}
	return MethodUPI
}

var statusProgress = map[string]int{
	OrderPending:    20,
	OrderConfirmed:  40,
	OrderProcessing: 60,
	OrderShipped:    80,
	OrderDelivered:  100,
	OrderCancelled:  0,
}

var statusLabels = map[string]string{
	OrderPending:    "Order Placed",
	OrderConfirmed:  "Order Confirmed",
	OrderProcessing: "Being Prepared",
	OrderShipped:    "On the Way",
	OrderDelivered:  "Delivered",
	OrderCancelled:  "Cancelled",
}

// OrderProgress maps an order status to a 0-100 percentage for tracking
// displays. Unknown statuses report zero progress.
func OrderProgress(status string) int {
	return statusProgress[status]
}

// OrderStatusLabel maps an order status to its human-readable label.
func OrderStatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}
