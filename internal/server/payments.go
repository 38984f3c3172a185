package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/pkg/db/pagination"
)

type monthRequest struct {
	Month string `json:"month"`
}

type taskStatusResponse struct {
	State   string            `json:"state"`
	Current int               `json:"current"`
	Total   int               `json:"total"`
	Result  map[string]string `json:"result"`
}

// SubmitCalculatePayments queues a billing run for a "YYYY-MM-01" month.
func (s *Server) SubmitCalculatePayments(c *gin.Context) {
	var req monthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	taskID, err := s.jobs.Submit(c.Request.Context(), req.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"task_id": taskID}})
}

func (s *Server) GetTaskStatus(c *gin.Context) {
	status, err := s.jobs.Status(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": taskStatusResponse{
		State:   string(status.State),
		Current: status.Current,
		Total:   status.Total,
		Result:  status.Result,
	}})
}

// CalculatePayment bills every flat for a "YYYY-MM" month before responding.
func (s *Server) CalculatePayment(c *gin.Context) {
	var req monthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.CalculatePayment(c.Request.Context(), req.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type listPaymentsQuery struct {
	Month string `form:"month"`
	pagination.Pagination
}

// ListPayments pages through the payments billed for a "YYYY-MM" month.
func (s *Server) ListPayments(c *gin.Context) {
	var query listPaymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ListPayments(c.Request.Context(), billingdomain.ListPaymentsRequest{
		Month:      query.Month,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
