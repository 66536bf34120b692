package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/storefront-cart/internal/app/service"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/errors"
	"github.com/ikkim/storefront-cart/internal/middleware"
	ws "github.com/ikkim/storefront-cart/internal/websocket"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CartController struct {
	cartService service.CartService
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

// NewCartController wires the HTTP handlers. allowedOrigins limits which
// pages may open the live-update socket; empty allows any origin.
func NewCartController(cartService service.CartService, hub *ws.Hub, allowedOrigins []string) *CartController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	ctrl := &CartController{
		cartService: cartService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || allowed["*"] {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
	if hub != nil {
		hub.SetMessageHandler(ctrl.HandleSocketMessage)
	}
	return ctrl
}

// socketActionTimeout bounds a dispatch triggered by an inbound frame.
const socketActionTimeout = 5 * time.Second

// HandleSocketMessage applies an action envelope received over the
// websocket. The resulting state reaches the client as a cart_updated event.
func (ctrl *CartController) HandleSocketMessage(owner string, message []byte) {
	log := logger.WithContext(map[string]interface{}{"source": "websocket"})

	var env cart.Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
		log.Warn("Ignoring malformed socket frame", map[string]interface{}{
			"owner": owner,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), socketActionTimeout)
	defer cancel()
	if _, err := ctrl.cartService.Dispatch(ctx, owner, env); err != nil {
		log.Warn("Socket action failed", map[string]interface{}{
			"owner": owner,
			"type":  env.Type,
			"error": err.Error(),
		})
	}
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type UpdateCustomizationRequest struct {
	Fields map[string]string `json:"fields" binding:"required"`
}

type NotificationRequest struct {
	Message string                `json:"message" binding:"required"`
	Type    cart.NotificationType `json:"type"`
}

// owner pulls the cart owner resolved by the middleware, writing the error
// response itself when there is none.
func (ctrl *CartController) owner(c *gin.Context) (string, bool) {
	owner, ok := middleware.GetCartOwner(c)
	if !ok {
		errors.RespondWithParsedError(c, service.ErrOwnerRequired, "resolve the cart owner")
		return "", false
	}
	return owner, true
}

func (ctrl *CartController) respond(c *gin.Context, state cart.State, err error, op string) {
	if err != nil {
		log := middleware.GetLoggerFromContext(c)
		info := errors.ParseError(err, op)
		if info.Status >= http.StatusInternalServerError {
			log.Error("Cart operation failed", err, map[string]interface{}{
				"operation": op,
			})
		} else {
			log.Warn("Cart operation rejected", map[string]interface{}{
				"operation": op,
				"error":     err.Error(),
			})
		}
		errors.RespondWithError(c, info.Status, info.Code, info.Message)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": service.NewCartView(state)})
}

// GetCart returns the cart with derived totals
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.GetCart(c.Request.Context(), owner)
	ctrl.respond(c, state, err, "load the cart")
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.ClearCart(c.Request.Context(), owner)
	ctrl.respond(c, state, err, "clear the cart")
}

// GetSelected returns the rows that take part in checkout
// GET /api/v1/cart/selected
func (ctrl *CartController) GetSelected(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	items, err := ctrl.cartService.SelectedItems(c.Request.Context(), owner)
	if err != nil {
		errors.RespondWithParsedError(c, err, "load the selected items")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":          items,
		"count":          cart.ItemsCount(items),
		"selected_total": cart.SelectedTotal(items),
	})
}

// Export downloads the cart as a spreadsheet
// GET /api/v1/cart/export
func (ctrl *CartController) Export(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	data, err := ctrl.cartService.ExportXLSX(c.Request.Context(), owner)
	if err != nil {
		info := errors.ParseError(err, "export the cart")
		if info.Code == errors.InternalServerError {
			info.Code = errors.CartExportFailed
		}
		errors.RespondWithError(c, info.Status, info.Code, info.Message)
		return
	}
	filename := fmt.Sprintf("cart-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// AddItem adds any product-shaped payload; the cart sanitizes it
// POST /api/v1/cart/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	var product cart.RawProduct
	if err := c.ShouldBindJSON(&product); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidFormat, "Request body must be a JSON object")
		return
	}
	state, err := ctrl.cartService.AddToCart(c.Request.Context(), owner, product)
	ctrl.respond(c, state, err, "add the item")
}

// RemoveItem deletes one row
// DELETE /api/v1/cart/items/:key
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.RemoveFromCart(c.Request.Context(), owner, c.Param("key"))
	ctrl.respond(c, state, err, "remove the item")
}

// UpdateQuantity sets a row's quantity; zero or less removes it
// PUT /api/v1/cart/items/:key/quantity
func (ctrl *CartController) UpdateQuantity(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.RespondWithValidationError(c, map[string]string{"quantity": "an integer quantity is required"})
		return
	}
	state, err := ctrl.cartService.UpdateQuantity(c.Request.Context(), owner, c.Param("key"), *req.Quantity)
	ctrl.respond(c, state, err, "update the quantity")
}

// UpdateCustomization changes a row's color, size, material or RAM
// PUT /api/v1/cart/items/:key/customization
func (ctrl *CartController) UpdateCustomization(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	var req UpdateCustomizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.RespondWithValidationError(c, map[string]string{"fields": "a map of customization fields is required"})
		return
	}
	state, err := ctrl.cartService.UpdateCustomization(c.Request.Context(), owner, c.Param("key"), req.Fields)
	ctrl.respond(c, state, err, "update the customization")
}

// ToggleSelect flips a row's checkout selection
// POST /api/v1/cart/items/:key/toggle
func (ctrl *CartController) ToggleSelect(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.ToggleSelect(c.Request.Context(), owner, c.Param("key"))
	ctrl.respond(c, state, err, "toggle the selection")
}

// SelectAll POST /api/v1/cart/select-all
func (ctrl *CartController) SelectAll(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.SelectAll(c.Request.Context(), owner)
	ctrl.respond(c, state, err, "select all items")
}

// DeselectAll POST /api/v1/cart/deselect-all
func (ctrl *CartController) DeselectAll(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.DeselectAll(c.Request.Context(), owner)
	ctrl.respond(c, state, err, "deselect all items")
}

// Dispatch applies a raw {"type", "payload"} action
// POST /api/v1/cart/actions
func (ctrl *CartController) Dispatch(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	var env cart.Envelope
	if err := c.ShouldBindJSON(&env); err != nil || strings.TrimSpace(env.Type) == "" {
		errors.RespondWithValidationError(c, map[string]string{"type": "an action type is required"})
		return
	}
	state, err := ctrl.cartService.Dispatch(c.Request.Context(), owner, env)
	ctrl.respond(c, state, err, "apply the action")
}

// ShowNotification POST /api/v1/cart/notification
func (ctrl *CartController) ShowNotification(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.RespondWithValidationError(c, map[string]string{"message": "a message is required"})
		return
	}
	state, err := ctrl.cartService.ShowNotification(c.Request.Context(), owner, req.Message, req.Type)
	ctrl.respond(c, state, err, "show the notification")
}

// HideNotification DELETE /api/v1/cart/notification
func (ctrl *CartController) HideNotification(c *gin.Context) {
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	state, err := ctrl.cartService.HideNotification(c.Request.Context(), owner)
	ctrl.respond(c, state, err, "hide the notification")
}

// WebSocketHandler streams cart_updated events and accepts actions
// GET /api/v1/cart/ws
func (ctrl *CartController) WebSocketHandler(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}

	// Hydrate before upgrading so storage errors still get an HTTP status.
	state, err := ctrl.cartService.GetCart(c.Request.Context(), owner)
	if err != nil {
		errors.RespondWithParsedError(c, err, "open the cart")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, owner)
	if initial, err := json.Marshal(service.CartEvent{Type: service.EventCartUpdated, Cart: service.NewCartView(state)}); err == nil {
		client.Send <- initial
	}
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"owner": owner,
	})
}
