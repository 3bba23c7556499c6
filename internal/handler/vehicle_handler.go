package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

type VehicleHandler struct {
	garage *service.GarageService
}

func NewVehicleHandler(garage *service.GarageService) *VehicleHandler {
	return &VehicleHandler{garage: garage}
}

type vehicleRequest struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     int    `json:"year"`
	Engine   string `json:"engine"`
	Nickname string `json:"nickname"`
}

func (h *VehicleHandler) Create(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	vehicle, err := h.garage.Add(c.Request.Context(), getUserID(c), service.VehicleInput{
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
		Engine:   req.Engine,
		Nickname: req.Nickname,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, vehicle)
}

func (h *VehicleHandler) List(c *gin.Context) {
	vehicles, err := h.garage.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, vehicles)
}

func (h *VehicleHandler) Delete(c *gin.Context) {
	if err := h.garage.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
