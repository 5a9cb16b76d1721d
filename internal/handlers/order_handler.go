package handlers

import (
	"context"
	"log"
	"time"

	"pear/internal/models"
	"pear/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler serves status messages straight from the Message Provider.
type OrderHandler struct {
	provider services.MessageProvider
	timeout  time.Duration
}

// NewOrderHandler creates a new OrderHandler. timeout bounds each provider
// call; zero means services.DefaultMessageTimeout.
func NewOrderHandler(provider services.MessageProvider, timeout time.Duration) *OrderHandler {
	if timeout <= 0 {
		timeout = services.DefaultMessageTimeout
	}
	return &OrderHandler{
		provider: provider,
		timeout:  timeout,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/status-update", h.HandleStatusUpdate)
}

// StatusUpdateRequest names the status a message is wanted for.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// HandleStatusUpdate returns the provider message for a status. A provider
// failure answers 500 with the fallback text.
func (h *OrderHandler) HandleStatusUpdate(c *fiber.Ctx) error {
	var req StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required",
		})
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Unknown order status",
			"error":   err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	message, err := h.provider.StatusMessage(ctx, status)
	if err != nil {
		log.Printf("Error generating status message for %s: %v", status, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": services.FallbackMessage(status),
		})
	}
	return c.JSON(fiber.Map{"message": message})
}
