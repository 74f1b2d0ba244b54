package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
)

type createInvoiceRequest struct {
	CustomerID string                          `json:"customer_id"`
	LineItems  []invoicedomain.LineItemRequest `json:"line_items"`
	TaxRate    *float64                        `json:"tax_rate"`
	DueDate    *time.Time                      `json:"due_date"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	taxRate, _, err := s.resolveRates(req.TaxRate, nil)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoices.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: req.CustomerID,
		LineItems:  req.LineItems,
		TaxRate:    taxRate,
		DueDate:    req.DueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	resp, err := s.invoices.List(c.Request.Context(), c.Query("customer_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoices.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateInvoice handles the manual settlement override. The only supported
// patch is {"status": "paid"}; the balance is settled through a synthetic
// manual payment so the history stays consistent.
func (s *Server) UpdateInvoice(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Status != string(invoicedomain.StatusPaid) {
		AbortWithError(c, newValidationError("status", "invalid_status", "only status \"paid\" can be set directly"))
		return
	}

	resp, err := s.invoices.SettleManually(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SendInvoice(c *gin.Context) {
	resp, err := s.invoices.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkInvoiceViewed(c *gin.Context) {
	resp, err := s.invoices.MarkViewed(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VoidInvoice(c *gin.Context) {
	resp, err := s.invoices.Void(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RefundInvoice(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	// The body is optional; a bare refund carries no notes.
	_ = c.ShouldBindJSON(&req)

	resp, err := s.invoices.Refund(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	resp, err := s.invoices.Payments(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type recordPaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Amount    int64  `json:"amount"`
	Method    string `json:"payment_method"`
	Notes     string `json:"notes"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.InvoiceID == "" {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invoice_id is required"))
		return
	}

	payment, invoice, err := s.invoices.RecordPayment(c.Request.Context(), req.InvoiceID, invoicedomain.RecordPaymentRequest{
		Amount: req.Amount,
		Method: req.Method,
		Notes:  req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"payment": payment,
		"invoice": invoice,
	}})
}
