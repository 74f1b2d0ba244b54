package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pyrosafe/fieldops/internal/conversion"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"github.com/pyrosafe/fieldops/internal/statemachine"
)

type createQuoteRequest struct {
	CustomerID   string                        `json:"customer_id"`
	SiteID       string                        `json:"site_id"`
	LineItems    []quotedomain.LineItemRequest `json:"line_items"`
	TaxRate      *float64                      `json:"tax_rate"`
	DiscountRate *float64                      `json:"discount_rate"`
}

func (s *Server) CreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	taxRate, discountRate, err := s.resolveRates(req.TaxRate, req.DiscountRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.quotes.Create(c.Request.Context(), quotedomain.CreateQuoteRequest{
		CustomerID:   req.CustomerID,
		SiteID:       req.SiteID,
		LineItems:    req.LineItems,
		TaxRate:      taxRate,
		DiscountRate: discountRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListQuotes(c *gin.Context) {
	resp, err := s.quotes.List(c.Request.Context(), c.Query("customer_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetQuoteByID(c *gin.Context) {
	resp, err := s.quotes.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddQuoteLineItem(c *gin.Context) {
	var item quotedomain.LineItemRequest
	if err := c.ShouldBindJSON(&item); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotes.AddLineItem(c.Request.Context(), c.Param("id"), item)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateQuoteLineItem(c *gin.Context) {
	var item quotedomain.LineItemRequest
	if err := c.ShouldBindJSON(&item); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotes.UpdateLineItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), item)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveQuoteLineItem(c *gin.Context) {
	resp, err := s.quotes.RemoveLineItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SendQuote(c *gin.Context) {
	s.transitionQuote(c, quotedomain.EventSend)
}

func (s *Server) MarkQuoteViewed(c *gin.Context) {
	s.transitionQuote(c, quotedomain.EventView)
}

func (s *Server) AcceptQuote(c *gin.Context) {
	s.transitionQuote(c, quotedomain.EventAccept)
}

func (s *Server) DeclineQuote(c *gin.Context) {
	s.transitionQuote(c, quotedomain.EventDecline)
}

func (s *Server) transitionQuote(c *gin.Context, event statemachine.Event) {
	resp, err := s.quotes.Transition(c.Request.Context(), c.Param("id"), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConvertQuoteToJob(c *gin.Context) {
	var req conversion.ConvertToJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.coordinator.ConvertQuoteToJob(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
