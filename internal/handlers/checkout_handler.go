package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"pos-service/internal/checkout"
	"pos-service/internal/domain"
	"pos-service/internal/repository"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Checkouter completes the sale of the current cart
type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (*domain.Sale, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	sales    repository.SaleRepository
	logger   *zap.Logger
}

func NewCheckoutHandler(orchestrator Checkouter, sales repository.SaleRepository, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: orchestrator,
		sales:    sales,
		logger:   logger,
	}
}

// Checkout handles POST /api/v1/checkout
// @Summary      Pay for the current cart
// @Description  Cobra el carrito actual: valida stock y pago, registra la venta, descuenta inventario, acredita puntos y encola la venta para sincronizar.
// @Description  **Idempotencia**: reenviar el mismo X-Request-ID devuelve el ticket original sin cobrar de nuevo (válido por el TTL configurado).
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Request-ID  header    string           false  "Request ID for idempotency"
// @Param        request       body      CheckoutRequest  true   "Payment"
// @Success      201           {object}  domain.Sale      "Venta registrada"
// @Failure      400           {object}  ErrorResponse    "Carrito vacío o request inválido"
// @Failure      404           {object}  ErrorResponse    "Cliente o producto no encontrado"
// @Failure      409           {object}  ErrorResponse    "Ya hay un cobro en curso"
// @Failure      422           {object}  ErrorResponse    "Pago o stock insuficiente"
// @Failure      500           {object}  ErrorResponse
// @Router       /checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid checkout request", zap.Error(err))
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "body"))
		return
	}

	sale, err := h.checkout.Checkout(c.Request.Context(), checkout.Request{
		PaymentMethod:   req.PaymentMethod,
		AmountPaid:      req.AmountPaid,
		CustomerID:      req.CustomerID,
		DiscountPercent: req.DiscountPercent,
		CashierID:       c.GetString("cashier_id"),
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// GetSale handles GET /api/v1/sales/:id
// @Summary      Get a sale
// @Tags         checkout
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  domain.Sale
// @Failure      404  {object}  ErrorResponse
// @Router       /sales/{id} [get]
func (h *CheckoutHandler) GetSale(c *gin.Context) {
	sale, err := h.sales.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		if stderrors.Is(err, repository.ErrSaleNotFound) {
			c.Error(errors.NewNotFound("sale", c.Param("id")))
			return
		}
		c.Error(errors.NewDatabaseError("get sale", err))
		return
	}
	c.JSON(http.StatusOK, sale)
}

// CustomerSales handles GET /api/v1/customers/:id/sales
// @Summary      Purchase history of a customer
// @Tags         customers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {array}   domain.Sale
// @Router       /customers/{id}/sales [get]
func (h *CheckoutHandler) CustomerSales(c *gin.Context) {
	sales, err := h.sales.ListSalesByCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(errors.NewDatabaseError("list customer sales", err))
		return
	}
	if sales == nil {
		sales = []*domain.Sale{}
	}
	c.JSON(http.StatusOK, sales)
}
