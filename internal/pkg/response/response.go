package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// Denied reports a quota or feature denial. The payload carries the used/limit
// pair so clients can render an upgrade prompt.
func Denied(c *gin.Context, code int, message string, detail interface{}) {
	c.AbortWithStatusJSON(200, gin.H{
		"code": code,
		"msg":  message,
		"data": detail,
	})
}
