package handlers

import (
	"log"

	"pear/internal/models"
	"pear/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// SessionHandler handles HTTP requests for shopping sessions: the cart,
// checkout and order tracking.
type SessionHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(service *services.OrderService) *SessionHandler {
	return &SessionHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the session routes with the Fiber app.
func (h *SessionHandler) RegisterRoutes(router fiber.Router) {
	sessionRoutes := router.Group("/sessions")
	sessionRoutes.Post("/", h.HandleCreateSession)
	sessionRoutes.Get("/:id", h.HandleGetSession)
	sessionRoutes.Post("/:id/cart/items", h.HandleAddItem)
	sessionRoutes.Put("/:id/cart/items/:productId", h.HandleSetQuantity)
	sessionRoutes.Delete("/:id/cart", h.HandleClearCart)
	sessionRoutes.Put("/:id/mode", h.HandleSetMode)
	sessionRoutes.Put("/:id/delivery", h.HandleSetDelivery)
	sessionRoutes.Post("/:id/order", h.HandlePlaceOrder)
	sessionRoutes.Get("/:id/order", h.HandleGetOrder)
	sessionRoutes.Delete("/:id/order", h.HandleNewOrder)
}

// HandleCreateSession opens a new shopping session.
func (h *SessionHandler) HandleCreateSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(h.service.CreateSession())
}

// HandleGetSession returns the cart and settings of a session.
func (h *SessionHandler) HandleGetSession(c *fiber.Ctx) error {
	view, err := h.service.Session(c.Params("id"))
	if err != nil {
		return errorResponse(c, "Could not retrieve session", err)
	}
	return c.JSON(view)
}

// AddItemRequest is the body of an add-to-cart call.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// HandleAddItem adds units of a product to the cart.
func (h *SessionHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	view, err := h.service.AddToCart(c.Params("id"), req.ProductID, req.Quantity)
	if err != nil {
		log.Printf("Error adding %s to cart of session %s: %v", req.ProductID, c.Params("id"), err)
		return errorResponse(c, "Could not add item to cart", err)
	}
	return c.JSON(view)
}

// SetQuantityRequest is the body of a quantity change. Zero or less
// removes the line.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// HandleSetQuantity replaces the quantity of a cart line.
func (h *SessionHandler) HandleSetQuantity(c *fiber.Ctx) error {
	var req SetQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	view, err := h.service.SetQuantity(c.Params("id"), c.Params("productId"), *req.Quantity)
	if err != nil {
		log.Printf("Error setting quantity in session %s: %v", c.Params("id"), err)
		return errorResponse(c, "Could not update cart", err)
	}
	return c.JSON(view)
}

// HandleClearCart empties the cart.
func (h *SessionHandler) HandleClearCart(c *fiber.Ctx) error {
	view, err := h.service.ClearCart(c.Params("id"))
	if err != nil {
		return errorResponse(c, "Could not clear cart", err)
	}
	return c.JSON(view)
}

// SetModeRequest is the body of a pricing mode change.
type SetModeRequest struct {
	Mode models.OrderMode `json:"order_mode" validate:"required"`
}

// HandleSetMode switches the session between retail and wholesale pricing.
func (h *SessionHandler) HandleSetMode(c *fiber.Ctx) error {
	var req SetModeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	view, err := h.service.SetMode(c.Params("id"), req.Mode)
	if err != nil {
		return errorResponse(c, "Could not change order mode", err)
	}
	return c.JSON(view)
}

// SetDeliveryRequest is the body of a delivery option change.
type SetDeliveryRequest struct {
	DeliveryOption models.DeliveryOption `json:"delivery_option" validate:"required"`
}

// HandleSetDelivery records the delivery option of the session.
func (h *SessionHandler) HandleSetDelivery(c *fiber.Ctx) error {
	var req SetDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	view, err := h.service.SetDeliveryOption(c.Params("id"), req.DeliveryOption)
	if err != nil {
		return errorResponse(c, "Could not change delivery option", err)
	}
	return c.JSON(view)
}

// HandlePlaceOrder checks out the cart and starts order tracking.
func (h *SessionHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	order, err := h.service.PlaceOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		log.Printf("Error placing order for session %s: %v", c.Params("id"), err)
		return errorResponse(c, "Could not place order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrder returns the active order and its status history.
func (h *SessionHandler) HandleGetOrder(c *fiber.Ctx) error {
	tracking, err := h.service.OrderStatus(c.Params("id"))
	if err != nil {
		return errorResponse(c, "Could not retrieve order", err)
	}
	return c.JSON(tracking)
}

// HandleNewOrder discards a delivered order so the session can shop again.
func (h *SessionHandler) HandleNewOrder(c *fiber.Ctx) error {
	view, err := h.service.StartNewOrder(c.Params("id"))
	if err != nil {
		return errorResponse(c, "Could not start a new order", err)
	}
	return c.JSON(view)
}
