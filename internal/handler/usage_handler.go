package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

type UsageHandler struct {
	ledger   *service.UsageLedger
	quota    *service.QuotaEnforcer
	reporter *service.UsageReporter
}

func NewUsageHandler(ledger *service.UsageLedger, quota *service.QuotaEnforcer, reporter *service.UsageReporter) *UsageHandler {
	return &UsageHandler{ledger: ledger, quota: quota, reporter: reporter}
}

func (h *UsageHandler) Report(c *gin.Context) {
	stats, err := h.reporter.Report(c.Request.Context(), getUserID(c), c.Query("date"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

type actionRequest struct {
	Action    string                 `json:"action"`
	SizeBytes int64                  `json:"size_bytes"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func bindAction(c *gin.Context) (actionRequest, model.ActionKind, bool) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return req, "", false
	}
	kind, err := model.ParseActionKind(req.Action)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return req, "", false
	}
	return req, kind, true
}

// Check reports the decision without recording anything. Store failures
// allow the action.
func (h *UsageHandler) Check(c *gin.Context) {
	req, kind, ok := bindAction(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := getUserID(c)
	var decision model.Decision
	if kind == model.ActionDocumentUpload {
		decision = h.quota.CheckUpload(ctx, userID, req.SizeBytes)
	} else {
		decision = h.quota.Check(ctx, userID, kind)
	}
	response.Success(c, decision)
}

func (h *UsageHandler) Record(c *gin.Context) {
	req, kind, ok := bindAction(c)
	if !ok {
		return
	}
	if err := h.ledger.Record(c.Request.Context(), getUserID(c), kind, req.Metadata); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"recorded": true, "action": kind})
}
