package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
)

// PermissionChecker 权限检查器接口
type PermissionChecker interface {
	HasPermission(role, permission string) bool
	HasAnyPermission(role string, permissions []string) bool
	HasAllPermissions(role string, permissions []string) bool
}

// RequirePermission 要求指定权限
func RequirePermission(checker PermissionChecker, permission string) gin.HandlerFunc {
	return requireRole(func(role string) bool {
		return checker.HasPermission(role, permission)
	})
}

// RequireAnyPermission 要求任一权限
func RequireAnyPermission(checker PermissionChecker, permissions ...string) gin.HandlerFunc {
	return requireRole(func(role string) bool {
		return checker.HasAnyPermission(role, permissions)
	})
}

// RequireAllPermissions 要求全部权限
func RequireAllPermissions(checker PermissionChecker, permissions ...string) gin.HandlerFunc {
	return requireRole(func(role string) bool {
		return checker.HasAllPermissions(role, permissions)
	})
}

func requireRole(allow func(role string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !allow(role) {
			response.Forbidden(c, "权限不足")
			c.Abort()
			return
		}

		c.Next()
	}
}
