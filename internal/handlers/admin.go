package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/utils"
)

// AdminHandler manages admin-only endpoints. Authorization happens in the
// allow-list middleware, not here.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalCustomers int64
	if err := h.db.Model(&models.User{}).Count(&totalCustomers).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	var totalProducts int64
	if err := h.db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var totalRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status != ? AND payment_status = ?", models.OrderCancelled, models.PaymentPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_customers":  totalCustomers,
			"total_orders":     totalOrders,
			"total_products":   totalProducts,
			"total_revenue":    totalRevenue,
			"orders_by_status": ordersByStatus,
		},
	})
}

// ListAllOrders returns all orders with pagination, search, status and date
// range filters.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("order_number ILIKE ? OR ship_name ILIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			query = query.Where("placed_at >= ?", t)
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			query = query.Where("placed_at < ?", t.AddDate(0, 0, 1))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Payment").Preload("User").
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

// GetOrder returns any order by id.
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").Preload("Payment").Preload("User").
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateOrderRequest struct {
	Status           *string    `json:"status"`
	PaymentStatus    *string    `json:"payment_status"`
	AdminNotes       *string    `json:"admin_notes"`
	Courier          *string    `json:"courier"`
	TrackingNumber   *string    `json:"tracking_number"`
	ShippedAt        *time.Time `json:"shipped_at"`
	ExpectedDelivery *time.Time `json:"expected_delivery"`
	DeliveredAt      *time.Time `json:"delivered_at"`
}

// UpdateOrder applies a permissive admin patch in one update. No transition
// rules are enforced; this is an override path.
func (h *AdminHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	var req updateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.PaymentStatus != nil {
		updates["payment_status"] = *req.PaymentStatus
	}
	if req.AdminNotes != nil {
		updates["admin_notes"] = *req.AdminNotes
	}
	if req.Courier != nil {
		updates["courier"] = *req.Courier
	}
	if req.TrackingNumber != nil {
		updates["tracking_number"] = *req.TrackingNumber
	}
	if req.ShippedAt != nil {
		updates["shipped_at"] = *req.ShippedAt
	}
	if req.ExpectedDelivery != nil {
		updates["expected_delivery"] = *req.ExpectedDelivery
	}
	if req.DeliveredAt != nil {
		updates["delivered_at"] = *req.DeliveredAt
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.Model(&order).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ListCustomers returns all identities with order stats.
func (h *AdminHandler) ListCustomers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		query = query.Where("email ILIKE ?", "%"+search+"%")
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Preload("Profile").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	type customerStats struct {
		UserID     string  `json:"user_id"`
		OrderCount int64   `json:"order_count"`
		TotalSpent float64 `json:"total_spent"`
	}

	var stats []customerStats
	if err := h.db.Model(&models.Order{}).
		Select("user_id, count(*) as order_count, COALESCE(SUM(total_amount), 0) as total_spent").
		Group("user_id").
		Scan(&stats).Error; err != nil {
		return err
	}

	statsMap := make(map[string]customerStats, len(stats))
	for _, s := range stats {
		statsMap[s.UserID] = s
	}

	type customerResponse struct {
		models.User
		OrderCount int64   `json:"order_count"`
		TotalSpent float64 `json:"total_spent"`
	}

	result := make([]customerResponse, len(users))
	for i, u := range users {
		result[i] = customerResponse{User: u}
		if s, ok := statsMap[u.ID.String()]; ok {
			result[i].OrderCount = s.OrderCount
			result[i].TotalSpent = s.TotalSpent
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetCustomer returns one identity with profile and orders.
func (h *AdminHandler) GetCustomer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var user models.User
	if err := h.db.Preload("Profile.Addresses").Preload("Orders").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

// Analytics returns revenue/order/customer/product aggregates over a period
// plus a category revenue breakdown.
func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	days := 30
	if d := c.QueryInt("days"); d > 0 {
		days = d
	}
	since := time.Now().AddDate(0, 0, -days)

	var revenue float64
	if err := h.db.Model(&models.Order{}).
		Where("placed_at >= ? AND payment_status = ?", since, models.PaymentPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&revenue).Error; err != nil {
		return err
	}

	var orderCount int64
	if err := h.db.Model(&models.Order{}).
		Where("placed_at >= ?", since).
		Count(&orderCount).Error; err != nil {
		return err
	}

	var newCustomers int64
	if err := h.db.Model(&models.User{}).
		Where("created_at >= ?", since).
		Count(&newCustomers).Error; err != nil {
		return err
	}

	var productsSold int64
	if err := h.db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.placed_at >= ?", since).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Scan(&productsSold).Error; err != nil {
		return err
	}

	type categoryRevenue struct {
		Category string  `json:"category"`
		Revenue  float64 `json:"revenue"`
	}
	var breakdown []categoryRevenue
	if err := h.db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("LEFT JOIN categories ON categories.id = products.category_id").
		Where("orders.placed_at >= ? AND orders.payment_status = ?", since, models.PaymentPaid).
		Select("COALESCE(categories.name, 'uncategorized') as category, COALESCE(SUM(order_items.line_total), 0) as revenue").
		Group("categories.name").
		Scan(&breakdown).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"period_days":        days,
			"revenue":            revenue,
			"orders":             orderCount,
			"new_customers":      newCustomers,
			"products_sold":      productsSold,
			"category_breakdown": breakdown,
		},
	})
}
