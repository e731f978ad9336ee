package handlers

import (
	"context"
	"net/http"

	"pos-service/internal/cart"
	"pos-service/internal/domain"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProductFinder resolves what the cashier scanned or picked
type ProductFinder interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	LookupByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
}

type CartHandler struct {
	cart     *cart.Engine
	products ProductFinder
	logger   *zap.Logger
}

func NewCartHandler(engine *cart.Engine, products ProductFinder, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cart:     engine,
		products: products,
		logger:   logger,
	}
}

// GetCart handles GET /api/v1/cart
// @Summary      Get the current cart
// @Description  Retorna las líneas del carrito en orden de captura junto con subtotal, impuesto y total.
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CartResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

// AddItem handles POST /api/v1/cart/items
// @Summary      Add a product to the cart
// @Description  Agrega un producto por id o por código de barras. Si el producto ya está en el carrito se suma la cantidad.
// @Description  La cantidad total no puede superar el stock disponible ni el máximo por línea.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      AddCartItemRequest  true  "Product and quantity"
// @Success      200      {object}  CartResponse
// @Failure      400      {object}  ErrorResponse  "Request inválido"
// @Failure      404      {object}  ErrorResponse  "Producto no encontrado"
// @Failure      422      {object}  ErrorResponse  "Stock insuficiente"
// @Router       /cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "body"))
		return
	}
	if (req.ProductID == "") == (req.Barcode == "") {
		c.Error(errors.NewValidationError("exactly one of productId or barcode is required", "productId"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var (
		product *domain.Product
		err     error
	)
	if req.Barcode != "" {
		product, err = h.products.LookupByBarcode(c.Request.Context(), req.Barcode)
	} else {
		product, err = h.products.GetProduct(c.Request.Context(), req.ProductID)
	}
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.cart.AddItem(c.Request.Context(), product, req.Quantity); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.snapshot())
}

// SetQuantity handles PUT /api/v1/cart/items/:productId
// @Summary      Change a cart line quantity
// @Description  Reemplaza la cantidad de una línea. Cantidad 0 elimina la línea.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        productId  path      string              true  "Product ID"
// @Param        request    body      SetQuantityRequest  true  "New quantity"
// @Success      200        {object}  CartResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse  "Línea no encontrada"
// @Router       /cart/items/{productId} [put]
func (h *CartHandler) SetQuantity(c *gin.Context) {
	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("quantity must be a non-negative integer", "quantity"))
		return
	}
	if err := h.cart.SetQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.snapshot())
}

// RemoveItem handles DELETE /api/v1/cart/items/:productId
// @Summary      Remove a cart line
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Param        productId  path      string  true  "Product ID"
// @Success      200        {object}  CartResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /cart/items/{productId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	if err := h.cart.RemoveItem(c.Request.Context(), c.Param("productId")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.snapshot())
}

// Clear handles DELETE /api/v1/cart
// @Summary      Empty the cart
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  SuccessResponse
// @Router       /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	h.cart.Clear(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Message: "cart cleared"})
}

// PreviewDiscount handles POST /api/v1/cart/discount
// @Summary      Preview a discount
// @Description  Calcula el total con un descuento porcentual sin modificar el carrito. El descuento se aplica sobre el subtotal.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      DiscountRequest  true  "Discount"
// @Success      200      {object}  cart.DiscountedTotals
// @Failure      400      {object}  ErrorResponse  "Descuento fuera de rango"
// @Router       /cart/discount [post]
func (h *CartHandler) PreviewDiscount(c *gin.Context) {
	var req DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "percent"))
		return
	}
	totals, err := h.cart.ApplyDiscount(req.Percent, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// Hold handles POST /api/v1/cart/hold
// @Summary      Park the current cart
// @Description  Guarda el carrito actual para atender a otro cliente y lo vacía. Solo se conserva un carrito en espera.
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse  "Carrito vacío"
// @Router       /cart/hold [post]
func (h *CartHandler) Hold(c *gin.Context) {
	if err := h.cart.Hold(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	h.logger.Info("Cart held", zap.String("cashier_id", c.GetString("cashier_id")))
	c.JSON(http.StatusOK, SuccessResponse{Message: "cart held"})
}

// Restore handles POST /api/v1/cart/restore
// @Summary      Restore the held cart
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CartResponse
// @Failure      404  {object}  ErrorResponse  "No hay carrito en espera"
// @Router       /cart/restore [post]
func (h *CartHandler) Restore(c *gin.Context) {
	if err := h.cart.Restore(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.snapshot())
}

// Stats handles GET /api/v1/cart/stats
// @Summary      Cart statistics
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  cart.Stats
// @Router       /cart/stats [get]
func (h *CartHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cart.Stats())
}

func (h *CartHandler) snapshot() CartResponse {
	lines, totals := h.cart.Snapshot()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return CartResponse{Items: lines, Totals: totals}
}
