// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/jwt"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
)

// 上下文键，追踪与访问日志中间件按同名键读取调用方
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
)

const bearerPrefix = "bearer "

// Authenticate 校验 Bearer 令牌并写入调用方身份。
// roles 为空时接受任意合法角色，否则角色不在列表内返回 403。
func Authenticate(manager *jwt.Manager, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "请先登录")
			return
		}

		claims, err := manager.ParseToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			abortUnauthorized(c, "登录已过期，请重新登录")
			return
		case err != nil:
			abortUnauthorized(c, "无效的令牌")
			return
		}

		if len(roles) > 0 && !containsRole(roles, claims.Role) {
			response.Forbidden(c, "无权访问")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// UserAuth 任意已登录角色
func UserAuth(manager *jwt.Manager) gin.HandlerFunc {
	return Authenticate(manager)
}

// StaffAuth 场馆员工或管理员
func StaffAuth(manager *jwt.Manager) gin.HandlerFunc {
	return Authenticate(manager, jwt.RoleStaff, jwt.RoleAdmin)
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Unauthorized(c, msg)
	c.Abort()
}

// GetUserID 当前调用方用户 ID，未认证时为 0
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyUserID)
}

// GetRole 当前调用方角色，未认证时为空
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// GetCaller 从上下文构造调用方身份
func GetCaller(c *gin.Context) authz.Caller {
	return authz.Caller{UserID: GetUserID(c), Role: GetRole(c)}
}
