package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pos-service/internal/commands"
	"pos-service/internal/domain"
	"pos-service/internal/excel"
	"pos-service/internal/inventory"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxStockTakeUpload bounds the size of an uploaded stock take workbook
const maxStockTakeUpload = 10 << 20

type InventoryHandler struct {
	inventory *inventory.Service
	logger    *zap.Logger
}

func NewInventoryHandler(service *inventory.Service, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: service,
		logger:    logger,
	}
}

// CreateProduct handles POST /api/v1/products
// @Summary      Register a product
// @Description  Registra un producto en el catálogo. El código de barras debe ser único entre productos activos.
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Request-ID  header    string                false  "Request ID for idempotency"
// @Param        request       body      CreateProductRequest  true   "Product"
// @Success      201           {object}  domain.Product
// @Failure      400           {object}  ErrorResponse
// @Failure      409           {object}  ErrorResponse  "Código de barras duplicado"
// @Router       /products [post]
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "body"))
		return
	}
	product, err := h.inventory.AddProduct(c.Request.Context(), commands.CreateProductCommand{
		Name:       req.Name,
		Barcode:    req.Barcode,
		Category:   req.Category,
		Unit:       req.Unit,
		Price:      req.Price,
		Cost:       req.Cost,
		Quantity:   req.Quantity,
		MinStock:   req.MinStock,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// ListProducts handles GET /api/v1/products
// @Summary      List active products
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        category  query     string  false  "Category filter"
// @Success      200       {array}   domain.Product
// @Router       /products [get]
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.inventory.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProduct handles GET /api/v1/products/:id
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  domain.Product
// @Failure      404  {object}  ErrorResponse
// @Router       /products/{id} [get]
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	product, err := h.inventory.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// GetProductByBarcode handles GET /api/v1/products/barcode/:barcode
// @Summary      Look up a product by barcode
// @Description  Busca un producto activo por código de barras (lectura del escáner).
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        barcode  path      string  true  "Barcode"
// @Success      200      {object}  domain.Product
// @Failure      404      {object}  ErrorResponse
// @Router       /products/barcode/{barcode} [get]
func (h *InventoryHandler) GetProductByBarcode(c *gin.Context) {
	product, err := h.inventory.LookupByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// UpdateProduct handles PUT /api/v1/products/:id
// @Summary      Update a product
// @Description  Actualiza los campos enviados; los campos omitidos conservan su valor. El stock solo cambia por entradas, salidas o conteos.
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true  "Product ID"
// @Param        request  body      UpdateProductRequest  true  "Changes"
// @Success      200      {object}  domain.Product
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /products/{id} [put]
func (h *InventoryHandler) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "body"))
		return
	}
	product, err := h.inventory.UpdateProduct(c.Request.Context(), commands.UpdateProductCommand{
		ID:         c.Param("id"),
		Name:       req.Name,
		Barcode:    req.Barcode,
		Category:   req.Category,
		Unit:       req.Unit,
		Price:      req.Price,
		Cost:       req.Cost,
		MinStock:   req.MinStock,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/:id
// @Summary      Deactivate a product
// @Description  Baja lógica: el producto deja de venderse pero su historial se conserva.
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /products/{id} [delete]
func (h *InventoryHandler) DeleteProduct(c *gin.Context) {
	if err := h.inventory.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "product deactivated"})
}

// StockIn handles POST /api/v1/products/:id/stock-in
// @Summary      Receive stock
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Request-ID  header    string                  false  "Request ID for idempotency"
// @Param        id            path      string                  true   "Product ID"
// @Param        request       body      StockAdjustmentRequest  true   "Quantity and reason"
// @Success      200           {object}  domain.StockMovement
// @Failure      400           {object}  ErrorResponse
// @Failure      404           {object}  ErrorResponse
// @Router       /products/{id}/stock-in [post]
func (h *InventoryHandler) StockIn(c *gin.Context) {
	h.adjust(c, h.inventory.AddStock)
}

// StockOut handles POST /api/v1/products/:id/stock-out
// @Summary      Remove stock
// @Description  Registra una salida manual (merma, caducidad). No puede dejar el stock en negativo.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Request-ID  header    string                  false  "Request ID for idempotency"
// @Param        id            path      string                  true   "Product ID"
// @Param        request       body      StockAdjustmentRequest  true   "Quantity and reason"
// @Success      200           {object}  domain.StockMovement
// @Failure      404           {object}  ErrorResponse
// @Failure      422           {object}  ErrorResponse  "Stock insuficiente"
// @Router       /products/{id}/stock-out [post]
func (h *InventoryHandler) StockOut(c *gin.Context) {
	h.adjust(c, h.inventory.RemoveStock)
}

func (h *InventoryHandler) adjust(c *gin.Context, apply func(ctx context.Context, cmd commands.AdjustStockCommand) (*domain.StockMovement, error)) {
	var req StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("quantity must be a positive integer", "quantity"))
		return
	}
	recorded, err := apply(c.Request.Context(), commands.AdjustStockCommand{
		ProductID: c.Param("id"),
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recorded)
}

// LowStock handles GET /api/v1/inventory/low-stock
// @Summary      Products at or below minimum stock
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Product
// @Router       /inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	products, err := h.inventory.LowStock(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// Expiring handles GET /api/v1/inventory/expiring
// @Summary      Products about to expire
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        days  query     int  false  "Days ahead (default 7)"
// @Success      200   {array}   domain.Product
// @Failure      400   {object}  ErrorResponse
// @Router       /inventory/expiring [get]
func (h *InventoryHandler) Expiring(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		c.Error(errors.NewValidationError("days must be an integer", "days"))
		return
	}
	products, err := h.inventory.ExpiringProducts(c.Request.Context(), days)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// Value handles GET /api/v1/inventory/value
// @Summary      Inventory valuation
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  inventory.Valuation
// @Router       /inventory/value [get]
func (h *InventoryHandler) Value(c *gin.Context) {
	value, err := h.inventory.InventoryValue(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, value)
}

// Movements handles GET /api/v1/inventory/movements
// @Summary      Stock movement history
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        productId  query     string  false  "Product ID"
// @Param        from       query     string  false  "RFC3339 lower bound"
// @Param        to         query     string  false  "RFC3339 upper bound"
// @Success      200        {array}   domain.StockMovement
// @Failure      400        {object}  ErrorResponse
// @Router       /inventory/movements [get]
func (h *InventoryHandler) Movements(c *gin.Context) {
	from, err := optionalTime(c, "from")
	if err != nil {
		c.Error(err)
		return
	}
	to, err := optionalTime(c, "to")
	if err != nil {
		c.Error(err)
		return
	}
	movements, err := h.inventory.Movements(c.Request.Context(), c.Query("productId"), from, to)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

// StockTake handles POST /api/v1/inventory/stock-take
// @Summary      Apply a physical stock count
// @Description  Acepta un archivo xlsx (campo "file") con columnas de id o código de barras y cantidad contada, o un JSON con la lista de conteos.
// @Description  Cada línea se aplica de forma independiente; el resultado indica éxito o error por línea.
// @Tags         inventory
// @Accept       multipart/form-data,json
// @Produce      json
// @Security     BearerAuth
// @Param        file     formData  file              false  "Stock take workbook"
// @Param        request  body      StockTakeRequest  false  "Counts as JSON"
// @Success      200      {array}   inventory.StockTakeResult
// @Failure      400      {object}  ErrorResponse
// @Router       /inventory/stock-take [post]
func (h *InventoryHandler) StockTake(c *gin.Context) {
	var counts []commands.StockCountCommand
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		parsed, err := h.parseWorkbook(c)
		if err != nil {
			c.Error(err)
			return
		}
		counts = parsed
	} else {
		var req StockTakeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError("invalid request: "+err.Error(), "counts"))
			return
		}
		for _, count := range req.Counts {
			counts = append(counts, commands.StockCountCommand{ProductID: count.ProductID, Barcode: count.Barcode, Actual: count.Actual})
		}
	}

	results := h.inventory.PerformStockTake(c.Request.Context(), counts)
	c.JSON(http.StatusOK, results)
}

func (h *InventoryHandler) parseWorkbook(c *gin.Context) ([]commands.StockCountCommand, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxStockTakeUpload)
	header, err := c.FormFile("file")
	if err != nil {
		return nil, errors.NewValidationError("a stock take workbook is required", "file")
	}
	file, err := header.Open()
	if err != nil {
		return nil, errors.NewValidationError("cannot read uploaded file", "file")
	}
	defer file.Close()

	counts, err := excel.ParseStockTake(file)
	if err != nil {
		h.logger.Warn("Rejected stock take workbook", zap.String("file", header.Filename), zap.Error(err))
		return nil, errors.NewValidationError(err.Error(), "file")
	}
	return counts, nil
}

// BulkPrices handles POST /api/v1/inventory/prices
// @Summary      Update several prices
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      BulkPriceRequest  true  "Price changes"
// @Success      200      {array}   inventory.PriceUpdateResult
// @Failure      400      {object}  ErrorResponse
// @Router       /inventory/prices [post]
func (h *InventoryHandler) BulkPrices(c *gin.Context) {
	var req BulkPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "updates"))
		return
	}
	updates := make([]commands.PriceUpdateCommand, 0, len(req.Updates))
	for _, update := range req.Updates {
		updates = append(updates, commands.PriceUpdateCommand{ProductID: update.ProductID, Price: update.Price, Cost: update.Cost})
	}
	c.JSON(http.StatusOK, h.inventory.BulkUpdatePrices(c.Request.Context(), updates))
}

// RegisterCustomer handles POST /api/v1/customers
// @Summary      Register a loyalty customer
// @Tags         customers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Request-ID  header    string                   false  "Request ID for idempotency"
// @Param        request       body      RegisterCustomerRequest  true   "Customer"
// @Success      201           {object}  domain.Customer
// @Failure      400           {object}  ErrorResponse
// @Failure      409           {object}  ErrorResponse  "Teléfono ya registrado"
// @Router       /customers [post]
func (h *InventoryHandler) RegisterCustomer(c *gin.Context) {
	var req RegisterCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("invalid request: "+err.Error(), "body"))
		return
	}
	customer, err := h.inventory.RegisterCustomer(c.Request.Context(), commands.RegisterCustomerCommand{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// ListCustomers handles GET /api/v1/customers
// @Summary      List customers
// @Tags         customers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Customer
// @Router       /customers [get]
func (h *InventoryHandler) ListCustomers(c *gin.Context) {
	customers, err := h.inventory.ListCustomers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// GetCustomer handles GET /api/v1/customers/:id
// @Summary      Get a customer
// @Tags         customers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  domain.Customer
// @Failure      404  {object}  ErrorResponse
// @Router       /customers/{id} [get]
func (h *InventoryHandler) GetCustomer(c *gin.Context) {
	customer, err := h.inventory.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func optionalTime(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.NewValidationError(name+" must be an RFC3339 timestamp", name)
	}
	return parsed, nil
}
