package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pyrosafe/fieldops/internal/money"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
)

func (s *Server) GetDeficiencyByID(c *gin.Context) {
	resp, err := s.deficiencies.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TransitionDeficiency(c *gin.Context) {
	var req struct {
		Event string `json:"event"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Event == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.deficiencies.Transition(c.Request.Context(), c.Param("id"), req.Event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type generateQuoteRequest struct {
	InspectionID  string   `json:"inspection_id"`
	DeficiencyIDs []string `json:"deficiency_ids"`
	TaxRate       *float64 `json:"tax_rate"`
	DiscountRate  *float64 `json:"discount_rate"`
}

func (s *Server) GenerateQuoteFromDeficiencies(c *gin.Context) {
	var req generateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	taxRate, discountRate, err := s.resolveRates(req.TaxRate, req.DiscountRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.coordinator.GenerateQuoteFromDeficiencies(c.Request.Context(), quotedomain.FromDeficienciesRequest{
		InspectionID:  req.InspectionID,
		DeficiencyIDs: req.DeficiencyIDs,
		TaxRate:       taxRate,
		DiscountRate:  discountRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// resolveRates binds percentage rates from a request, falling back to the
// configured default tax rate when the field is absent.
func (s *Server) resolveRates(taxPercent, discountPercent *float64) (money.Bps, money.Bps, error) {
	taxRate := money.Bps(s.cfg.DefaultTaxBps)
	if taxPercent != nil {
		rate, err := money.RateFromPercent(*taxPercent)
		if err != nil {
			return 0, 0, newValidationError("tax_rate", "invalid_amount", "tax_rate must be between 0 and 100")
		}
		taxRate = rate
	}

	var discountRate money.Bps
	if discountPercent != nil {
		rate, err := money.RateFromPercent(*discountPercent)
		if err != nil {
			return 0, 0, newValidationError("discount_rate", "invalid_amount", "discount_rate must be between 0 and 100")
		}
		discountRate = rate
	}

	return taxRate, discountRate, nil
}
