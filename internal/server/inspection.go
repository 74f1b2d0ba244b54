package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	inspectiondomain "github.com/pyrosafe/fieldops/internal/inspection/domain"
)

func (s *Server) CreateInspection(c *gin.Context) {
	var req inspectiondomain.CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inspections.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInspections(c *gin.Context) {
	resp, err := s.inspections.List(c.Request.Context(), c.Query("customer_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInspectionByID(c *gin.Context) {
	resp, err := s.inspections.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) StartInspection(c *gin.Context) {
	resp, err := s.inspections.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CompleteInspection(c *gin.Context) {
	var result inspectiondomain.CompletionResult
	if err := c.ShouldBindJSON(&result); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inspections.Complete(c.Request.Context(), c.Param("id"), result)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelInspection(c *gin.Context) {
	resp, err := s.inspections.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteInspection(c *gin.Context) {
	if err := s.inspections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) RecordInspectionChecklist(c *gin.Context) {
	var req inspectiondomain.RecordChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inspections.RecordChecklist(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInspectionChecklist(c *gin.Context) {
	resp, err := s.inspections.ListChecklist(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordDeficiency(c *gin.Context) {
	var req deficiencydomain.RecordDeficiencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.deficiencies.Record(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInspectionDeficiencies(c *gin.Context) {
	resp, err := s.deficiencies.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
