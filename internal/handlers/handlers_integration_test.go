package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"pear/internal/handlers"
	"pear/internal/middleware"
	"pear/internal/models"
	"pear/internal/repositories"
	"pear/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	adminUsername = "admin"
	adminPassword = "password123"
)

type failingProvider struct{}

func (failingProvider) StatusMessage(ctx context.Context, status models.OrderStatus) (string, error) {
	return "", &services.ProviderError{Status: status, Err: errors.New("upstream unavailable")}
}

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T, provider services.MessageProvider) (*fiber.App, *services.AuthService) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "failed to connect to in-memory database")
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Admin{}))

	// Initialize Repositories
	productRepo := repositories.NewGORMProductRepository(db)
	adminRepo := repositories.NewGORMAdminRepository(db)
	orderRepo := repositories.NewMemoryOrderRepository()

	// Initialize Services
	productService := services.NewProductService(productRepo, nil)
	authService := services.NewAuthService(adminRepo, "test_jwt_secret", time.Hour)
	engine := services.NewStatusEngine(services.NewLocalMessageProvider(0),
		services.WithDelays(time.Millisecond, 0, time.Millisecond))
	orderService := services.NewOrderService(orderRepo, productRepo, engine, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = orderService.Shutdown(ctx)
	})

	_, err = productService.SeedCatalog()
	require.NoError(t, err)
	require.NoError(t, authService.EnsureAdmin(adminUsername, adminPassword))

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService).RegisterRoutes(apiV1, middleware.AdminRequired(authService))
	handlers.NewOrderHandler(provider, time.Second).RegisterRoutes(apiV1)
	handlers.NewSessionHandler(orderService).RegisterRoutes(apiV1)

	return app, authService
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": adminUsername,
		"password": adminPassword,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decode(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func TestAuthLogin(t *testing.T) {
	app, authService := setupApp(t, services.NewLocalMessageProvider(0))

	token := login(t, app)
	claims, err := authService.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, adminUsername, claims["username"])
	assert.Equal(t, services.RoleAdmin, claims["role"])

	// Wrong password
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": adminUsername,
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Missing fields
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": adminUsername}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProductEndpoints(t *testing.T) {
	app, _ := setupApp(t, services.NewLocalMessageProvider(0))

	// --- Test GET /products (public) ---
	resp := doJSON(t, app, http.MethodGet, "/api/v1/products?sort=price-asc&mode=Wholesale", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var products []models.Product
	decode(t, resp, &products)
	require.Len(t, products, 6)
	assert.Equal(t, "Nova Spark", products[0].Name)
	assert.Equal(t, "Galaxy Fold Z5", products[5].Name)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?sort=rating", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// --- Test POST /products without a token ---
	newProduct := map[string]interface{}{
		"name":            "Orbit Mini",
		"retail_price":    599.99,
		"wholesale_price": 450,
		"stock":           20,
	}
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", newProduct, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	token := login(t, app)

	// --- Test POST /products (admin) ---
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", newProduct, token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var createdProduct models.Product
	decode(t, resp, &createdProduct)
	assert.NotEmpty(t, createdProduct.ID)
	assert.Equal(t, "Orbit Mini", createdProduct.Name)
	assert.Equal(t, "Experience the new Orbit Mini, designed for excellence.", createdProduct.Description)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", map[string]interface{}{"name": "Free Phone", "retail_price": 0}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// --- Test GET /products/:id ---
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/"+createdProduct.ID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var fetchedProduct models.Product
	decode(t, resp, &fetchedProduct)
	assert.Equal(t, createdProduct.ID, fetchedProduct.ID)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// --- Test PUT /products/:id/stock (admin) ---
	resp = doJSON(t, app, http.MethodPut, "/api/v1/products/"+createdProduct.ID+"/stock", map[string]int{"stock": 0}, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updatedProduct models.Product
	decode(t, resp, &updatedProduct)
	assert.Equal(t, 0, updatedProduct.Stock)

	resp = doJSON(t, app, http.MethodPut, "/api/v1/products/"+createdProduct.ID+"/stock", map[string]int{"stock": -1}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, "/api/v1/products/missing/stock", map[string]int{"stock": 1}, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?in_stock=true", nil, "")
	decode(t, resp, &products)
	assert.Len(t, products, 6)
}

func TestSessionCheckoutAndTracking(t *testing.T) {
	app, _ := setupApp(t, services.NewLocalMessageProvider(0))

	resp := doJSON(t, app, http.MethodGet, "/api/v1/products", nil, "")
	var products []models.Product
	decode(t, resp, &products)
	var x1 models.Product
	for _, p := range products {
		if p.Name == "Quantum X1" {
			x1 = p
		}
	}
	require.NotEmpty(t, x1.ID)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session services.SessionView
	decode(t, resp, &session)
	base := "/api/v1/sessions/" + session.ID

	// Placing an empty cart is rejected.
	resp = doJSON(t, app, http.MethodPost, base+"/order", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, base+"/cart/items", map[string]interface{}{"product_id": x1.ID, "quantity": 2}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &session)
	assert.Equal(t, "1998", session.Total.String())

	resp = doJSON(t, app, http.MethodPut, base+"/mode", map[string]string{"order_mode": "Wholesale"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &session)
	assert.Equal(t, "1500", session.Total.String())

	resp = doJSON(t, app, http.MethodPut, base+"/delivery", map[string]string{"delivery_option": "Drone"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, base+"/delivery", map[string]string{"delivery_option": "Express Shipping"}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, base+"/order", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	assert.Equal(t, "1500", order.TotalPrice.String())
	assert.Equal(t, models.OrderModeWholesale, order.Mode)
	assert.Equal(t, models.DeliveryExpress, order.DeliveryOption)

	// The cart is frozen while the order is active.
	resp = doJSON(t, app, http.MethodPut, base+"/cart/items/"+x1.ID, map[string]int{"quantity": 5}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	var tracking services.OrderTracking
	assert.Eventually(t, func() bool {
		resp := doJSON(t, app, http.MethodGet, base+"/order", nil, "")
		decode(t, resp, &tracking)
		return tracking.Completed
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, tracking.Updates, 5)
	assert.Equal(t, models.StatusDelivered, tracking.Current)

	resp = doJSON(t, app, http.MethodDelete, base+"/order", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &session)
	assert.Empty(t, session.Lines)

	resp = doJSON(t, app, http.MethodGet, base+"/order", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/sessions/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStatusUpdateEndpoint(t *testing.T) {
	app, _ := setupApp(t, services.NewLocalMessageProvider(0))

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/status-update", map[string]string{"status": "Shipped"}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "Your order is now: Shipped. We'll notify you of the next steps.", body["message"])

	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/status-update", map[string]string{"status": "Lost"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	failing, _ := setupApp(t, failingProvider{})
	resp = doJSON(t, failing, http.MethodPost, "/api/v1/orders/status-update", map[string]string{"status": "Delivered"}, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, "Your order is now: Delivered. We'll notify you of the next steps.", body["message"])
}
