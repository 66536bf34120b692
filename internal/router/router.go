package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/app/controller"
	"github.com/ikkim/storefront-cart/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	cartController  *controller.CartController
	ownerMiddleware *middleware.OwnerMiddleware
	gatherer        prometheus.Gatherer
	config          *config.Config
	healthCheck     func(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

func NewRouter(
	cartController *controller.CartController,
	ownerMiddleware *middleware.OwnerMiddleware,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		cartController:  cartController,
		ownerMiddleware: ownerMiddleware,
		gatherer:        gatherer,
		config:          cfg,
	}
}

// WithHealthCheck makes /health report 503 when check fails.
func (r *Router) WithHealthCheck(check func(ctx context.Context) error) *Router {
	r.healthCheck = check
	return r
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", r.health)

	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		cart := v1.Group("/cart")
		cart.Use(r.ownerMiddleware.ResolveOwner())
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.GET("/selected", r.cartController.GetSelected)
			cart.GET("/export", r.cartController.Export)
			cart.GET("/ws", r.cartController.WebSocketHandler)

			cart.POST("/items", r.cartController.AddItem)
			cart.DELETE("/items/:key", r.cartController.RemoveItem)
			cart.PUT("/items/:key/quantity", r.cartController.UpdateQuantity)
			cart.PUT("/items/:key/customization", r.cartController.UpdateCustomization)
			cart.POST("/items/:key/toggle", r.cartController.ToggleSelect)

			cart.POST("/select-all", r.cartController.SelectAll)
			cart.POST("/deselect-all", r.cartController.DeselectAll)
			cart.POST("/actions", r.cartController.Dispatch)

			cart.POST("/notification", r.cartController.ShowNotification)
			cart.DELETE("/notification", r.cartController.HideNotification)
		}
	}

	return router
}

func (r *Router) health(c *gin.Context) {
	if r.healthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.healthCheck(ctx); err != nil {
			middleware.GetLoggerFromContext(c).Warn("Storage health check failed", map[string]interface{}{
				"error": err.Error(),
			})
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"storage": r.config.Cart.StorageBackend,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"storage": r.config.Cart.StorageBackend,
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+middleware.SessionHeader+", "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.SessionHeader+", "+middleware.RequestIDHeader+", Content-Disposition")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
