package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/middleware"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
)

const maxPageSize = 200

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	fields := []zap.Field{
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	}
	logger := logutil.GetLogger(c.Request.Context())

	var denied *model.PolicyDenied
	if errors.As(err, &denied) {
		logger.Info("request denied by tier policy", fields...)
		code := errcode.ErrQuotaExceeded
		if denied.Ceiling == model.CeilingFeature {
			code = errcode.ErrFeatureDisabled
		}
		response.Denied(c, code, denied.Reason(), denied)
		return
	}
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrStoreUnavailable):
		logger.Error("store unavailable", fields...)
		response.Error(c, errcode.ErrStoreUnavailable, "service temporarily unavailable")
	case errors.Is(err, appErr.ErrIndexUnavailable):
		logger.Error("index unavailable", fields...)
		response.Error(c, errcode.ErrIndexUnavailable, "search temporarily unavailable")
	default:
		logger.Error("request failed", fields...)
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func pageParams(c *gin.Context) (limit, offset uint) {
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = uint(min(parsed, maxPageSize))
		}
	}
	if value := c.Query("offset"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			offset = uint(parsed)
		}
	}
	return limit, offset
}
