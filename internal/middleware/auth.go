package middleware

import (
	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "userID"

// GatewayAuth JWT 在网关终结，经过认证的用户以 X-User-Id 头透传到这里。
// 只校验头存在且为合法 UUID，不做令牌解析
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if _, err := uuid.Parse(userID); err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID 取出网关注入的用户标识，未认证时返回空串
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
