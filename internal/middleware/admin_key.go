package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/apikey"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errcode"
	"github.com/brunoamorim39/greasemonkey-ai/internal/pkg/response"
)

const AdminKeyHeader = "X-API-Key"

// AdminKey guards operator routes with a bcrypt hashed key. An empty hash
// disables the routes.
func AdminKey(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hash == "" {
			response.Error(c, errcode.ErrForbidden, "admin api disabled")
			c.Abort()
			return
		}
		key := c.GetHeader(AdminKeyHeader)
		if key == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing api key")
			c.Abort()
			return
		}
		if err := apikey.Verify(hash, key); err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("admin key rejected",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.FullPath()),
			)
			response.Error(c, errcode.ErrUnauthorized, "invalid api key")
			c.Abort()
			return
		}
		c.Next()
	}
}
