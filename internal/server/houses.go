package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	housedomain "github.com/smallbiznis/housebill/internal/house/domain"
)

type createHouseRequest struct {
	HouseStreet string `json:"house_street"`
}

// GetHouseInfo answers an unknown address with a not_found status in a 200.
func (s *Server) GetHouseInfo(c *gin.Context) {
	view, err := s.houseSvc.GetByAddress(c.Request.Context(), c.Query("house_street"))
	if errors.Is(err, housedomain.ErrHouseNotFound) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "not_found",
			"message": "house not found",
		})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   view,
	})
}

func (s *Server) CreateHouse(c *gin.Context) {
	var req createHouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.houseSvc.Create(c.Request.Context(), housedomain.CreateRequest{Address: req.HouseStreet})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
