package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type createOrderRequest struct {
	CustomerEmail string          `json:"customer_email" binding:"omitempty,email"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency" binding:"omitempty,min=3,max=10"`
	Title         string          `json:"title" binding:"max=255"`
	Description   string          `json:"description"`
}

type lineItemRequest struct {
	Description string          `json:"description" binding:"required"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Quantity    int64           `json:"quantity" binding:"omitempty,min=1"`
}

type createPaymentRequest struct {
	Provider        string            `json:"provider" binding:"required"`
	ReceiveCurrency string            `json:"receive_currency"`
	LineItems       []lineItemRequest `json:"line_items" binding:"dive"`
	Metadata        map[string]string `json:"metadata"`
}

// CreateOrder
// POST /api/orders
func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.paymentSvc.CreateOrder(c.Request.Context(), domain.OrderInput{
		CustomerEmail: req.CustomerEmail,
		TotalAmount:   req.TotalAmount,
		Currency:      req.Currency,
		Title:         req.Title,
		Description:   req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, order)
}

// GetOrder
// GET /api/orders/:id
func (s *Server) GetOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := s.paymentSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}

// CreatePayment opens a payment for the order with the chosen provider.
// POST /api/orders/:id/payments
func (s *Server) CreatePayment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	provider, known := domain.ParseProvider(req.Provider)
	if !known {
		AbortWithError(c, domain.ErrProviderNotFound)
		return
	}

	items := make([]domain.LineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		items = append(items, domain.LineItem{
			Description: item.Description,
			UnitAmount:  item.UnitAmount,
			Quantity:    qty,
		})
	}

	metadata := req.Metadata
	if key := idempotencyKeyFromHeader(c); key != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["idempotency_key"] = key
	}

	tx, err := s.paymentSvc.CreatePayment(c.Request.Context(), id, provider, domain.CreatePaymentOptions{
		ReceiveCurrency: req.ReceiveCurrency,
		LineItems:       items,
		Metadata:        metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, tx)
}

// GetTransaction
// GET /api/transactions/:id
func (s *Server) GetTransaction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tx, err := s.paymentSvc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, tx)
}

func parseID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id <= 0 {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return id, true
}
