package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

type TierHandler struct {
	resolver *service.TierResolver
}

func NewTierHandler(resolver *service.TierResolver) *TierHandler {
	return &TierHandler{resolver: resolver}
}

type tierResponse struct {
	Tier     model.Tier       `json:"tier"`
	TierName string           `json:"tier_name"`
	Policy   model.TierPolicy `json:"policy"`
}

func (h *TierHandler) Get(c *gin.Context) {
	tier, err := h.resolver.Resolve(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, tierResponse{Tier: tier, TierName: tier.DisplayName(), Policy: model.PolicyOf(tier)})
}

type overrideRequest struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	Hours  int    `json:"hours"`
	Reason string `json:"reason"`
}

// SetOverride grants a temporary tier. Hours defaults to the resolver TTL.
func (h *TierHandler) SetOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return
	}
	if req.Hours < 0 {
		response.Error(c, errcode.ErrInvalid, "hours must not be negative")
		return
	}
	override, err := h.resolver.SetOverride(c.Request.Context(), req.UserID, tier, time.Duration(req.Hours)*time.Hour, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, override)
}

type assignRequest struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
}

// Assign sets the stored tier of a user, the subscription level that applies
// once overrides lapse.
func (h *TierHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return
	}
	user, err := h.resolver.AssignTier(c.Request.Context(), req.UserID, tier)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}
