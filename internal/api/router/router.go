package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend-pm/config"
	"backend-pm/internal/api/handler"
	"backend-pm/internal/api/middleware"
	"backend-pm/internal/service"
	"backend-pm/pkg/jwt"
	"backend-pm/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, svc *service.Service, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(4 << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	perm := func(code string) gin.HandlerFunc {
		return middleware.PermissionAuth(svc.Permission, code)
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(rdb, 10, time.Minute), h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/profile", h.Auth.UpdateProfile)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)
			authorized.GET("/menus/me", h.Menu.GetMyMenuTree)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("", perm("user:list"), h.User.ListUsers)
				users.POST("", perm("user:create"), h.User.CreateUser)
				users.GET("/export", perm("user:export"), h.User.ExportUsers)
				users.POST("/import", perm("user:import"), h.User.ImportUsers)
				users.GET("/:id", perm("user:read"), h.User.GetUser)
				users.PUT("/:id", perm("user:update"), h.User.UpdateUser)
				users.DELETE("/:id", perm("user:delete"), h.User.DeleteUser)
				users.PUT("/:id/activate", perm("user:manage"), h.User.ActivateUser)
				users.PUT("/:id/deactivate", perm("user:manage"), h.User.DeactivateUser)
				users.PUT("/:id/unlock", perm("user:manage"), h.User.UnlockUser)
				users.POST("/:id/reset-password", perm("user:manage"), h.User.ResetPassword)
				users.GET("/:id/roles", perm("user:read"), h.User.ListUserRoles)
				users.PUT("/:id/roles", perm("user:assign-role"), h.User.AssignRoles)
				users.PUT("/:id/departments", perm("user:assign-department"), h.Department.AssignUserDepartments)
				users.PUT("/:id/departments/primary", perm("user:assign-department"), h.Department.SetUserPrimaryDepartment)
				users.GET("/:id/permissions", perm("permission:read"), h.Permission.GetUserEffectivePermissions)
				users.GET("/:id/permissions/check", perm("permission:read"), h.Permission.CheckUserPermission)
			}

			// 角色模块
			roles := authorized.Group("/roles")
			{
				roles.GET("", perm("role:list"), h.Role.ListRoles)
				roles.GET("/tree", perm("role:list"), h.Role.GetRoleTree)
				roles.POST("", perm("role:create"), h.Role.CreateRole)
				roles.GET("/:id", perm("role:read"), h.Role.GetRole)
				roles.PUT("/:id", perm("role:update"), h.Role.UpdateRole)
				roles.DELETE("/:id", perm("role:delete"), h.Role.DeleteRole)
				roles.PUT("/:id/enable", perm("role:manage"), h.Role.EnableRole)
				roles.PUT("/:id/disable", perm("role:manage"), h.Role.DisableRole)
				roles.PUT("/:id/parent", perm("role:update"), h.Role.SetRoleParent)
				roles.GET("/:id/permissions", perm("role:read"), h.Role.ListRolePermissions)
				roles.PUT("/:id/permissions", perm("role:assign-permission"), h.Role.AssignPermissions)
				roles.GET("/:id/users", perm("role:read"), h.Role.ListRoleUsers)
			}

			// 权限模块
			permissions := authorized.Group("/permissions")
			{
				permissions.GET("", perm("permission:list"), h.Permission.ListPermissions)
				permissions.POST("", perm("permission:create"), h.Permission.CreatePermission)
				permissions.POST("/api", perm("permission:create"), h.Permission.RegisterAPIPermission)
				permissions.GET("/:id", perm("permission:read"), h.Permission.GetPermission)
				permissions.PUT("/:id", perm("permission:update"), h.Permission.UpdatePermission)
				permissions.DELETE("/:id", perm("permission:delete"), h.Permission.DeletePermission)
				permissions.PUT("/:id/enable", perm("permission:manage"), h.Permission.EnablePermission)
				permissions.PUT("/:id/disable", perm("permission:manage"), h.Permission.DisablePermission)
			}

			// 菜单模块
			menus := authorized.Group("/menus")
			{
				menus.GET("/tree", perm("menu:list"), h.Menu.GetMenuTree)
				menus.POST("", perm("menu:create"), h.Menu.CreateMenu)
				menus.GET("/:id", perm("menu:read"), h.Menu.GetMenu)
				menus.PUT("/:id", perm("menu:update"), h.Menu.UpdateMenu)
				menus.DELETE("/:id", perm("menu:delete"), h.Menu.DeleteMenu)
				menus.PUT("/:id/enable", perm("menu:manage"), h.Menu.EnableMenu)
				menus.PUT("/:id/disable", perm("menu:manage"), h.Menu.DisableMenu)
				menus.PUT("/:id/parent", perm("menu:update"), h.Menu.SetMenuParent)
				menus.GET("/:id/permissions", perm("menu:read"), h.Menu.ListMenuPermissions)
				menus.PUT("/:id/permissions", perm("menu:bind-permission"), h.Menu.BindMenuPermissions)
			}

			// 部门模块
			departments := authorized.Group("/departments")
			{
				departments.GET("/tree", perm("department:list"), h.Department.GetDepartmentTree)
				departments.POST("", perm("department:create"), h.Department.CreateDepartment)
				departments.GET("/:id", perm("department:read"), h.Department.GetDepartment)
				departments.PUT("/:id", perm("department:update"), h.Department.UpdateDepartment)
				departments.DELETE("/:id", perm("department:delete"), h.Department.DeleteDepartment)
				departments.PUT("/:id/enable", perm("department:manage"), h.Department.EnableDepartment)
				departments.PUT("/:id/disable", perm("department:manage"), h.Department.DisableDepartment)
				departments.PUT("/:id/parent", perm("department:update"), h.Department.SetDepartmentParent)
				departments.PUT("/:id/leader", perm("department:update"), h.Department.SetDepartmentLeader)
				departments.GET("/:id/users", perm("department:read"), h.Department.ListDepartmentUsers)
			}
		}
	}

	return r
}
