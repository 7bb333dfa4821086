package server

import (
	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/status"
)

type statusResponse struct {
	Provider    domain.Provider      `json:"provider"`
	Token       string               `json:"token"`
	Status      domain.PaymentStatus `json:"status"`
	Known       bool                 `json:"known"`
	Description string               `json:"description"`
}

// LookupStatus shows how a provider status token is reconciled.
// GET /api/providers/:provider/statuses/:token
func (s *Server) LookupStatus(c *gin.Context) {
	provider, ok := domain.ParseProvider(c.Param("provider"))
	if !ok {
		AbortWithError(c, domain.ErrProviderNotFound)
		return
	}
	token := c.Param("token")
	table, found := status.For(provider)

	respondData(c, statusResponse{
		Provider:    provider,
		Token:       token,
		Status:      status.Map(provider, token),
		Known:       found && table.Known(token),
		Description: status.Describe(provider, token),
	})
}
