package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"backend-pm/internal/service"
	"backend-pm/pkg/jwt"
	"backend-pm/pkg/redis"
	"backend-pm/pkg/response"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token。
// rdb 为 nil 时跳过黑名单检查（Redis 降级运行）。
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if claims.TokenType != "access" {
			response.Unauthorized(c, 10002, "Token 类型无效")
			c.Abort()
			return
		}

		if rdb != nil {
			blacklisted, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID)
			if err == nil && blacklisted {
				response.Unauthorized(c, 10002, "Token 已失效")
				c.Abort()
				return
			}
		}

		// 将用户信息注入上下文
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// PermissionAuth 权限校验中间件
// 检查当前用户是否持有指定编码的权限（编码比较不区分大小写）
func PermissionAuth(permSvc service.PermissionService, code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		allowed, err := permSvc.HasPermission(c.Request.Context(), userID.(string), code)
		if err != nil {
			response.InternalError(c)
			c.Abort()
			return
		}
		if !allowed {
			response.Forbidden(c, 10003, "无权限访问")
			c.Abort()
			return
		}

		c.Next()
	}
}

// APIPermissionAuth 接口资源级权限校验中间件
// 按请求的路由模板匹配接口权限，仅比较资源路径
func APIPermissionAuth(permSvc service.PermissionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		allowed, err := permSvc.HasAPIPermission(c.Request.Context(), userID.(string), c.FullPath(), c.Request.Method)
		if err != nil {
			response.InternalError(c)
			c.Abort()
			return
		}
		if !allowed {
			response.Forbidden(c, 10003, "无权限访问")
			c.Abort()
			return
		}

		c.Next()
	}
}
