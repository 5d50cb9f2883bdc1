package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shopstreak/internal/models"
)

func TestCreateReviewRefreshesAggregate(t *testing.T) {
	app, db, cfg, _ := newTestApp(t)
	product := seedProduct(t, db, "widget", 99.0, 10)

	_, tokenA := completedCustomer(t, app, db, cfg, "first@example.com", "9876543210")
	_, tokenB := completedCustomer(t, app, db, cfg, "second@example.com", "9876543211")

	resp := jsonRequest(t, app, "POST", "/api/products/"+product.ID.String()+"/reviews", fiber.Map{
		"rating":  5,
		"title":   "Great",
		"comment": "Works as described.",
	}, tokenA)
	require.Equal(t, 201, resp.StatusCode)

	resp = jsonRequest(t, app, "POST", "/api/products/"+product.ID.String()+"/reviews", fiber.Map{
		"rating": 2,
	}, tokenB)
	require.Equal(t, 201, resp.StatusCode)

	var fresh models.Product
	require.NoError(t, db.First(&fresh, "id = ?", product.ID).Error)
	assert.InDelta(t, 3.5, fresh.RatingAvg, 1e-9)
	assert.Equal(t, 2, fresh.RatingCount)

	// One review per user per product.
	resp = jsonRequest(t, app, "POST", "/api/products/"+product.ID.String()+"/reviews", fiber.Map{
		"rating": 1,
	}, tokenA)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestCreateReviewRatingBounds(t *testing.T) {
	app, db, cfg, _ := newTestApp(t)
	product := seedProduct(t, db, "widget", 99.0, 10)
	_, token := completedCustomer(t, app, db, cfg, "first@example.com", "9876543210")

	for _, rating := range []int{0, 6, -1} {
		resp := jsonRequest(t, app, "POST", "/api/products/"+product.ID.String()+"/reviews", fiber.Map{
			"rating": rating,
		}, token)
		assert.Equal(t, 400, resp.StatusCode, "rating %d", rating)
	}
}

func TestListReviewsPublic(t *testing.T) {
	app, db, cfg, _ := newTestApp(t)
	product := seedProduct(t, db, "widget", 99.0, 10)
	_, token := completedCustomer(t, app, db, cfg, "first@example.com", "9876543210")

	resp := jsonRequest(t, app, "POST", "/api/products/"+product.ID.String()+"/reviews", fiber.Map{
		"rating": 4,
	}, token)
	require.Equal(t, 201, resp.StatusCode)

	// No token needed for reads.
	resp = jsonRequest(t, app, "GET", "/api/products/"+product.ID.String()+"/reviews", nil, "")
	require.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Len(t, body["data"].([]interface{}), 1)
	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, 1.0, pagination["total_items"])
}
