package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/middleware"
	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/services"
	"github.com/example/shopstreak/internal/utils"
)

// OrderHandler manages customer order endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type shippingAddressRequest struct {
	Name        string `json:"name"`
	Mobile      string `json:"mobile"`
	AddressLine string `json:"address_line"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
}

type createOrderRequest struct {
	Items           []orderItemRequest      `json:"items"`
	ShippingAddress *shippingAddressRequest `json:"shipping_address"`
	PaymentMethod   string                  `json:"payment_method"`
	ShippingCharge  float64                 `json:"shipping_charge"`
	Tax             float64                 `json:"tax"`
	Discount        float64                 `json:"discount"`
	Notes           string                  `json:"notes"`
}

// CreateOrder places an order from a subset of the cart.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.Items) == 0 || req.ShippingAddress == nil || req.PaymentMethod == "" {
		return fiber.NewError(fiber.StatusBadRequest, "items, shipping_address and payment_method are required")
	}
	if req.ShippingAddress.AddressLine == "" || req.ShippingAddress.City == "" {
		return fiber.NewError(fiber.StatusBadRequest, "shipping address is incomplete")
	}

	lines := make([]services.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		lines = append(lines, services.OrderLine{ProductID: productID, Quantity: item.Quantity})
	}

	result, err := h.orders.PlaceOrder(services.PlaceOrderInput{
		UserID: userID,
		Items:  lines,
		Shipping: services.ShippingAddress{
			Name:        req.ShippingAddress.Name,
			Mobile:      req.ShippingAddress.Mobile,
			AddressLine: req.ShippingAddress.AddressLine,
			Apartment:   req.ShippingAddress.Apartment,
			City:        req.ShippingAddress.City,
			State:       req.ShippingAddress.State,
			PostalCode:  req.ShippingAddress.PostalCode,
		},
		PaymentMethod:  req.PaymentMethod,
		ShippingCharge: req.ShippingCharge,
		Tax:            req.Tax,
		Discount:       req.Discount,
		CustomerNotes:  req.Notes,
	})
	if err != nil {
		return orderError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": result})
}

// ListOrders returns the authenticated user's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Payment").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.loadOrder(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// TrackOrder returns the tracking projection: status label, progress
// percentage, and shipping sub-document.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	order, err := h.loadOrder(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order_number":      order.OrderNumber,
			"status":            order.Status,
			"status_label":      models.OrderStatusLabel(order.Status),
			"progress":          models.OrderProgress(order.Status),
			"courier":           order.Courier,
			"tracking_number":   order.TrackingNumber,
			"shipped_at":        order.ShippedAt,
			"expected_delivery": order.ExpectedDelivery,
			"delivered_at":      order.DeliveredAt,
		},
	})
}

func (h *OrderHandler) loadOrder(c *fiber.Ctx) (*models.Order, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").Preload("Payment").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return nil, err
	}

	return &order, nil
}

// orderError maps workflow failures onto distinct HTTP errors.
func orderError(err error) error {
	var stock *services.InsufficientStockError
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
	case errors.Is(err, services.ErrItemNotInCart):
		return fiber.NewError(fiber.StatusBadRequest, "item not in cart")
	case errors.As(err, &stock):
		return fiber.NewError(fiber.StatusConflict, stock.Error())
	default:
		return err
	}
}
