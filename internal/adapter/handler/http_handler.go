package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veloure/storefront/internal/core/domain"
	"github.com/veloure/storefront/internal/core/service"
	"github.com/veloure/storefront/internal/port"
)

type HTTPHandler struct {
	cart     *service.CartService
	checkout *service.CheckoutService
	catalog  port.CatalogRepository
	logger   *zap.Logger
}

func NewHTTPHandler(cart *service.CartService, checkout *service.CheckoutService, catalog port.CatalogRepository, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		cart:     cart,
		checkout: checkout,
		catalog:  catalog,
		logger:   logger,
	}
}

func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
	api.GET("/cart", h.GetCart)
	api.POST("/cart/items", h.AddCartItem)
	api.PUT("/cart/items/:id", h.UpdateCartItem)
	api.DELETE("/cart/items/:id", h.RemoveCartItem)
	api.POST("/checkout", h.Checkout)

	admin := api.Group("/admin")
	admin.POST("/products", h.CreateProduct)
	admin.PUT("/products/:id", h.UpdateProduct)
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
	Source    string `json:"source"`
}

type addItemResponse struct {
	Granted        int               `json:"granted"`
	RemainingStock int               `json:"remaining_stock"`
	Lines          []domain.CartLine `json:"lines"`
}

func (h *HTTPHandler) AddCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("catalog lookup failed", zap.String("product_id", req.ProductID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	result, err := h.cart.AddLine(c.Request.Context(), *product, req.Quantity, req.Source)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	// A zero grant with no error means sold out; still a 200 so the UI can
	// flip the control to "sold out" rather than show a failure.
	c.JSON(http.StatusOK, addItemResponse{
		Granted:        result.Granted,
		RemainingStock: result.RemainingStock,
		Lines:          result.Lines,
	})
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (h *HTTPHandler) UpdateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines, err := h.cart.UpdateLineQty(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		h.respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (h *HTTPHandler) RemoveCartItem(c *gin.Context) {
	lines, err := h.cart.RemoveLine(c.Request.Context(), c.Param("id"))
	if err != nil {
		// The line is gone regardless; report the release failure alongside
		// the updated cart.
		c.JSON(http.StatusOK, gin.H{"lines": lines, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	lines := h.cart.GetCart(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"lines":    lines,
		"subtotal": domain.Subtotal(lines),
	})
}

type checkoutRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.checkout.PlaceOrder(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
			return
		}
		h.logger.Error("checkout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"total":    order.Total,
		"status":   order.Status,
	})
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("list products failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("get product failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

type productRequest struct {
	Slug        string          `json:"slug" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
}

func (h *HTTPHandler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product := domain.Product{
		Slug:        req.Slug,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}
	if err := h.catalog.CreateProduct(c.Request.Context(), product); err != nil {
		h.logger.Error("create product failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product := domain.Product{
		ID:          c.Param("id"),
		Slug:        req.Slug,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}
	if err := h.catalog.UpdateProduct(c.Request.Context(), product); err != nil {
		h.logger.Error("update product failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, service.ErrStockConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "stock update conflict, please try again"})
	default:
		h.logger.Error("cart operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
