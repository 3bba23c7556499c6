package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query     string `json:"query"`
	Car       string `json:"car"`
	VehicleID string `json:"vehicle_id"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Limit     int    `json:"limit"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	outcome, err := h.search.Search(c.Request.Context(), getUserID(c), service.SearchQuery{
		Query:     req.Query,
		Car:       req.Car,
		VehicleID: req.VehicleID,
		Filter:    model.VehicleInfo{Make: req.Make, Model: req.Model, Year: req.Year},
		Limit:     req.Limit,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, outcome)
}
