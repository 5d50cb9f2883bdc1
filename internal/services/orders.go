package services

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/models"
)

// Order placement failure modes. The whole operation aborts with zero side
// effects on any of these.
var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrItemNotInCart = errors.New("item not in cart")
)

// InsufficientStockError names the offending product and how many units are
// actually available.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available", e.ProductName, e.Available)
}

// OrderLine selects one cart entry for purchase.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// ShippingAddress is the address snapshot copied onto the order.
type ShippingAddress struct {
	Name        string
	Mobile      string
	AddressLine string
	Apartment   string
	City        string
	State       string
	PostalCode  string
}

// PlaceOrderInput carries everything the workflow needs. Shipping, tax and
// discount figures are taken from the caller; the subtotal and total identity
// are computed server-side from live prices.
type PlaceOrderInput struct {
	UserID         uuid.UUID
	Items          []OrderLine
	Shipping       ShippingAddress
	PaymentMethod  string
	ShippingCharge float64
	Tax            float64
	Discount       float64
	CustomerNotes  string
}

// PlaceOrderResult is the caller-facing summary of a placed order.
type PlaceOrderResult struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Total         float64   `json:"total"`
	PaymentID     uuid.UUID `json:"payment_id"`
	TxnStatus     string    `json:"txn_status"`
	TransactionID string    `json:"transaction_id"`
}

// OrderService runs the order placement workflow.
type OrderService struct {
	db           *gorm.DB
	log          *zap.Logger
	paymentDelay time.Duration
	now          func() time.Time
	sequence     atomic.Uint64
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, log *zap.Logger, paymentDelay time.Duration) *OrderService {
	return &OrderService{db: db, log: log, paymentDelay: paymentDelay, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// PlaceOrder validates the requested items against the cart and live stock,
// persists an order plus its payment record, and for upi runs the simulated
// instant-pay path. The cart is deliberately left untouched.
//
// The stock check and the later decrement are not a single atomic action;
// concurrent placements can oversell. Faithful to the reference behavior.
func (s *OrderService) PlaceOrder(in PlaceOrderInput) (*PlaceOrderResult, error) {
	var cart models.Cart
	err := s.db.Preload("Items").Where("user_id = ?", in.UserID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmptyCart
	} else if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	entries := make(map[uuid.UUID]models.CartItem, len(cart.Items))
	for _, item := range cart.Items {
		entries[item.ProductID] = item
	}

	type validatedLine struct {
		product  models.Product
		cartItem models.CartItem
		quantity int
	}

	// Duplicate lines for one product fold together so the stock check sees
	// the full requested quantity.
	requested := make(map[uuid.UUID]int, len(in.Items))
	productOrder := make([]uuid.UUID, 0, len(in.Items))
	for _, line := range in.Items {
		entry, ok := entries[line.ProductID]
		if !ok {
			return nil, ErrItemNotInCart
		}

		quantity := line.Quantity
		if quantity <= 0 {
			quantity = entry.Quantity
		}

		if _, seen := requested[line.ProductID]; !seen {
			productOrder = append(productOrder, line.ProductID)
		}
		requested[line.ProductID] += quantity
	}

	lines := make([]validatedLine, 0, len(productOrder))
	for _, productID := range productOrder {
		quantity := requested[productID]

		var product models.Product
		if err := s.db.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrItemNotInCart
			}
			return nil, err
		}

		if product.Stock < quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
			}
		}

		lines = append(lines, validatedLine{product: product, cartItem: entries[productID], quantity: quantity})
	}

	now := s.now()
	order := models.Order{
		UserID:          in.UserID,
		OrderNumber:     s.generateOrderNumber(now),
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentPending,
		PaymentMethod:   models.NormalizePaymentMethod(in.PaymentMethod),
		PlacedAt:        now,
		ShipName:        in.Shipping.Name,
		ShipMobile:      in.Shipping.Mobile,
		ShipAddressLine: in.Shipping.AddressLine,
		ShipApartment:   in.Shipping.Apartment,
		ShipCity:        in.Shipping.City,
		ShipState:       in.Shipping.State,
		ShipPostalCode:  in.Shipping.PostalCode,
		ShippingCharge:  in.ShippingCharge,
		Tax:             in.Tax,
		Discount:        in.Discount,
		Currency:        "INR",
		CustomerNotes:   in.CustomerNotes,
	}

	var subtotal float64
	for _, line := range lines {
		lineTotal := line.product.Price * float64(line.quantity)
		subtotal += lineTotal

		productID := line.product.ID
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    &productID,
			ProductName:  line.product.Name,
			ProductImage: line.product.Image,
			Variant:      line.cartItem.Variant,
			Quantity:     line.quantity,
			UnitPrice:    line.product.Price,
			LineTotal:    lineTotal,
		})
	}

	order.Subtotal = subtotal
	order.TotalAmount = subtotal + in.ShippingCharge + in.Tax - in.Discount

	if err := s.db.Create(&order).Error; err != nil {
		return nil, err
	}

	payment := models.Payment{
		OrderID:       order.ID,
		Method:        order.PaymentMethod,
		Status:        models.TxnPending,
		Amount:        order.TotalAmount,
		TransactionID: generateTransactionID(now),
	}

	if err := s.db.Create(&payment).Error; err != nil {
		return nil, err
	}

	// Simulated instant-pay path, upi only. Other methods stay pending.
	if order.PaymentMethod == models.MethodUPI {
		s.settleInstantPayment(&order, &payment)
	}

	s.log.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", in.UserID.String()),
		zap.Float64("total", order.TotalAmount),
		zap.String("payment_method", order.PaymentMethod))

	return &PlaceOrderResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.TotalAmount,
		PaymentID:     payment.ID,
		TxnStatus:     payment.Status,
		TransactionID: payment.TransactionID,
	}, nil
}

// settleInstantPayment simulates gateway processing, flips payment and order
// statuses, and decrements stock. There is no rollback path once the order
// and payment rows exist; a failed step here is logged loudly for manual
// reconciliation.
func (s *OrderService) settleInstantPayment(order *models.Order, payment *models.Payment) {
	if s.paymentDelay > 0 {
		time.Sleep(s.paymentDelay)
	}

	now := s.now()
	if err := s.db.Model(payment).Updates(map[string]interface{}{
		"status":  models.TxnCompleted,
		"paid_at": now,
	}).Error; err != nil {
		s.log.Error("payment settlement failed after order persisted",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}
	payment.Status = models.TxnCompleted
	payment.PaidAt = &now

	if err := s.db.Model(order).Updates(map[string]interface{}{
		"status":         models.OrderConfirmed,
		"payment_status": models.PaymentPaid,
	}).Error; err != nil {
		s.log.Error("order status update failed after payment settled",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}
	order.Status = models.OrderConfirmed
	order.PaymentStatus = models.PaymentPaid

	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		if err := s.db.Model(&models.Product{}).
			Where("id = ?", *item.ProductID).
			Update("stock", gorm.Expr("stock - ?", item.Quantity)).Error; err != nil {
			s.log.Error("stock decrement failed after order and payment persisted, manual reconciliation required",
				zap.String("order_id", order.ID.String()),
				zap.String("product_id", item.ProductID.String()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
}

// The in-process sequence does not survive restarts and is not shared across
// processes; the random suffix keeps numbers unique regardless.
func (s *OrderService) generateOrderNumber(now time.Time) string {
	seq := s.sequence.Add(1)
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("SS%s%04d%s", now.Format("20060102150405"), seq%10000, suffix)
}

func generateTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN%d%s", now.UnixNano(), uuid.New().String()[:8])
}
