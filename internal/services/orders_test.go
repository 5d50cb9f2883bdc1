package services

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/models"
)

type orderFixture struct {
	db   *gorm.DB
	svc  *OrderService
	user models.User
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	db := testDB(t)
	user := models.User{
		Email:           "buyer@example.com",
		AuthProvider:    models.ProviderEmail,
		OnboardingStage: models.StageCompleted,
		EmailVerified:   true,
		Role:            models.RoleCustomer,
		Status:          models.StatusActive,
	}
	require.NoError(t, db.Create(&user).Error)

	return &orderFixture{
		db:   db,
		svc:  NewOrderService(db, zap.NewNop(), 0),
		user: user,
	}
}

func (f *orderFixture) addProduct(t *testing.T, name string, price float64, stock int) models.Product {
	t.Helper()

	product := models.Product{
		Slug:     name,
		Name:     name,
		Price:    price,
		Currency: "INR",
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return product
}

func (f *orderFixture) fillCart(t *testing.T, items ...models.CartItem) models.Cart {
	t.Helper()

	cart := models.Cart{UserID: f.user.ID}
	require.NoError(t, f.db.Create(&cart).Error)
	for i := range items {
		items[i].CartID = cart.ID
		items[i].AddedAt = time.Now()
		require.NoError(t, f.db.Create(&items[i]).Error)
	}
	return cart
}

func shipTo() ShippingAddress {
	return ShippingAddress{
		Name:        "Test Buyer",
		Mobile:      "9876543210",
		AddressLine: "42 MG Road",
		City:        "Bengaluru",
		State:       "KA",
		PostalCode:  "560001",
	}
}

func TestPlaceOrderInsufficientStockHasNoSideEffects(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(t, "widget", 99.0, 2)
	f.fillCart(t, models.CartItem{ProductID: product.ID, Quantity: 3})

	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		UserID:        f.user.ID,
		Items:         []OrderLine{{ProductID: product.ID, Quantity: 3}},
		Shipping:      shipTo(),
		PaymentMethod: "upi",
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, product.ID, stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Available)

	// The whole operation aborts: no order, no payment, stock untouched.
	var orders, payments int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, orders)
	assert.Zero(t, payments)

	var fresh models.Product
	require.NoError(t, f.db.First(&fresh, "id = ?", product.ID).Error)
	assert.Equal(t, 2, fresh.Stock)
}

func TestPlaceOrderItemNotInCart(t *testing.T) {
	f := newOrderFixture(t)
	inCart := f.addProduct(t, "in-cart", 10, 5)
	outside := f.addProduct(t, "outside", 20, 5)
	f.fillCart(t, models.CartItem{ProductID: inCart.ID, Quantity: 1})

	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		UserID:        f.user.ID,
		Items:         []OrderLine{{ProductID: outside.ID, Quantity: 1}},
		Shipping:      shipTo(),
		PaymentMethod: "cod",
	})
	assert.ErrorIs(t, err, ErrItemNotInCart)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(t, "widget", 10, 5)

	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		UserID:        f.user.ID,
		Items:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
		Shipping:      shipTo(),
		PaymentMethod: "cod",
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderInstantPayLeavesCartUntouched(t *testing.T) {
	f := newOrderFixture(t)
	productA := f.addProduct(t, "product-a", 150.0, 10)
	productB := f.addProduct(t, "product-b", 80.0, 4)
	cart := f.fillCart(t,
		models.CartItem{ProductID: productA.ID, Quantity: 2},
		models.CartItem{ProductID: productB.ID, Quantity: 1},
	)

	// gpay normalizes to upi and takes the simulated instant-pay path.
	result, err := f.svc.PlaceOrder(PlaceOrderInput{
		UserID:        f.user.ID,
		Items:         []OrderLine{{ProductID: productA.ID, Quantity: 2}},
		Shipping:      shipTo(),
		PaymentMethod: "gpay",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderConfirmed, result.Status)
	assert.Equal(t, models.PaymentPaid, result.PaymentStatus)
	assert.Equal(t, models.TxnCompleted, result.TxnStatus)
	assert.Equal(t, 300.0, result.Total)
	assert.NotEmpty(t, result.OrderNumber)
	assert.NotEmpty(t, result.TransactionID)

	// Ordered items stay in the cart, quantities unchanged.
	var items []models.CartItem
	require.NoError(t, f.db.Where("cart_id = ?", cart.ID).Order("quantity desc").Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, productA.ID, items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, productB.ID, items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)

	// One line item snapshotted for product A only.
	var order models.Order
	require.NoError(t, f.db.Preload("Items").Preload("Payment").First(&order, "id = ?", result.OrderID).Error)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "product-a", order.Items[0].ProductName)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, 150.0, order.Items[0].UnitPrice)
	assert.Equal(t, models.MethodUPI, order.PaymentMethod)
	require.NotNil(t, order.Payment)
	assert.Equal(t, models.TxnCompleted, order.Payment.Status)
	assert.NotNil(t, order.Payment.PaidAt)

	// Stock decreased by exactly the purchased quantity.
	var freshA, freshB models.Product
	require.NoError(t, f.db.First(&freshA, "id = ?", productA.ID).Error)
	require.NoError(t, f.db.First(&freshB, "id = ?", productB.ID).Error)
	assert.Equal(t, 8, freshA.Stock)
	assert.Equal(t, 4, freshB.Stock)
}

func TestPlaceOrderNonUPIStaysPending(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(t, "widget", 50.0, 5)
	f.fillCart(t, models.CartItem{ProductID: product.ID, Quantity: 1})

	result, err := f.svc.PlaceOrder(PlaceOrderInput{
		UserID:        f.user.ID,
		Items:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
		Shipping:      shipTo(),
		PaymentMethod: "cod",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, result.Status)
	assert.Equal(t, models.PaymentPending, result.PaymentStatus)
	assert.Equal(t, models.TxnPending, result.TxnStatus)

	// No automated progression, so stock is untouched.
	var fresh models.Product
	require.NoError(t, f.db.First(&fresh, "id = ?", product.ID).Error)
	assert.Equal(t, 5, fresh.Stock)
}

func TestPlaceOrderTotalInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		f := newOrderFixture(t)

		lineCount := 1 + rng.Intn(4)
		var cartItems []models.CartItem
		var lines []OrderLine
		var expectedSubtotal float64

		for i := 0; i < lineCount; i++ {
			price := float64(1+rng.Intn(10000)) / 4.0
			quantity := 1 + rng.Intn(5)
			product := f.addProduct(t, uuid.New().String(), price, quantity+rng.Intn(5))
			cartItems = append(cartItems, models.CartItem{ProductID: product.ID, Quantity: quantity})
			lines = append(lines, OrderLine{ProductID: product.ID, Quantity: quantity})
			expectedSubtotal += price * float64(quantity)
		}
		f.fillCart(t, cartItems...)

		shipping := float64(rng.Intn(100))
		tax := float64(rng.Intn(50))
		discount := float64(rng.Intn(40))

		result, err := f.svc.PlaceOrder(PlaceOrderInput{
			UserID:         f.user.ID,
			Items:          lines,
			Shipping:       shipTo(),
			PaymentMethod:  "cod",
			ShippingCharge: shipping,
			Tax:            tax,
			Discount:       discount,
		})
		require.NoError(t, err)

		var order models.Order
		require.NoError(t, f.db.Preload("Items").First(&order, "id = ?", result.OrderID).Error)

		var subtotal float64
		for _, item := range order.Items {
			assert.InDelta(t, item.UnitPrice*float64(item.Quantity), item.LineTotal, 1e-9)
			subtotal += item.LineTotal
		}
		assert.InDelta(t, expectedSubtotal, order.Subtotal, 1e-9)
		assert.InDelta(t, subtotal, order.Subtotal, 1e-9)
		assert.InDelta(t, order.Subtotal+order.ShippingCharge+order.Tax-order.Discount, order.TotalAmount, 1e-9)
	}
}

func TestOrderNumbersAreUnique(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(t, "widget", 10, 100)
	f.fillCart(t, models.CartItem{ProductID: product.ID, Quantity: 1})

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		result, err := f.svc.PlaceOrder(PlaceOrderInput{
			UserID:        f.user.ID,
			Items:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
			Shipping:      shipTo(),
			PaymentMethod: "cod",
		})
		require.NoError(t, err)
		require.False(t, seen[result.OrderNumber], "duplicate order number %s", result.OrderNumber)
		seen[result.OrderNumber] = true
	}

	// A second service instance restarts the sequence at the same value
	// within the same second; its numbers must still be unique.
	other := NewOrderService(f.db, zap.NewNop(), 0)
	result, err := other.PlaceOrder(PlaceOrderInput{
		UserID:        f.user.ID,
		Items:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
		Shipping:      shipTo(),
		PaymentMethod: "cod",
	})
	require.NoError(t, err)
	require.False(t, seen[result.OrderNumber], "duplicate order number %s", result.OrderNumber)
}

func TestPlaceOrderDuplicateLinesFoldTogether(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(t, "widget", 50.0, 3)
	f.fillCart(t, models.CartItem{ProductID: product.ID, Quantity: 4})

	// Two lines of 2 against a stock of 3 must fail as a combined 4.
	_, err := f.svc.PlaceOrder(PlaceOrderInput{
		UserID: f.user.ID,
		Items: []OrderLine{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 2},
		},
		Shipping:      shipTo(),
		PaymentMethod: "upi",
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)

	var fresh models.Product
	require.NoError(t, f.db.First(&fresh, "id = ?", product.ID).Error)
	assert.Equal(t, 3, fresh.Stock)

	// Within stock, the duplicates merge into a single line item.
	f2 := newOrderFixture(t)
	p2 := f2.addProduct(t, "widget", 50.0, 4)
	f2.fillCart(t, models.CartItem{ProductID: p2.ID, Quantity: 4})

	result, err := f2.svc.PlaceOrder(PlaceOrderInput{
		UserID: f2.user.ID,
		Items: []OrderLine{
			{ProductID: p2.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 2},
		},
		Shipping:      shipTo(),
		PaymentMethod: "upi",
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f2.db.Preload("Items").First(&order, "id = ?", result.OrderID).Error)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 4, order.Items[0].Quantity)
	assert.Equal(t, 200.0, order.Subtotal)

	var fresh2 models.Product
	require.NoError(t, f2.db.First(&fresh2, "id = ?", p2.ID).Error)
	assert.Equal(t, 0, fresh2.Stock)
}
