// Package admin registers the admin API surface.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/batch"
	"github.com/coverwatch/coverwatch/internal/cache"
	"github.com/coverwatch/coverwatch/internal/config"
	"github.com/coverwatch/coverwatch/internal/http/api/admin/handlers"
	"github.com/coverwatch/coverwatch/internal/models"
	"github.com/coverwatch/coverwatch/internal/security"
)

// RegisterAdminRoutes registers public and authenticated admin routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, authCfg config.AuthConfig, runner *batch.Runner, resultCache *cache.ResultCache) {
	if r == nil || db == nil {
		return
	}

	admin := r.Group("/v0/admin")

	healthHandler := handlers.NewHealthHandler(db)
	admin.GET("/healthz", healthHandler.Healthz)

	authHandler := handlers.NewAuthHandler(db, authCfg)
	admin.POST("/auth/login", authHandler.Login)

	authed := admin.Group("")
	authed.Use(adminAuthMiddleware(db, authCfg))

	orgHandler := handlers.NewOrganizationHandler(db)
	authed.POST("/organizations", orgHandler.Create)
	authed.GET("/organizations", orgHandler.List)
	authed.GET("/organizations/:id", orgHandler.Get)
	authed.PUT("/organizations/:id", orgHandler.Update)

	vendorHandler := handlers.NewVendorHandler(db, resultCache)
	authed.POST("/vendors", vendorHandler.Create)
	authed.GET("/vendors", vendorHandler.List)
	authed.GET("/vendors/:id", vendorHandler.Get)
	authed.PUT("/vendors/:id", vendorHandler.Update)
	authed.PUT("/vendors/:id/snapshot", vendorHandler.UpsertSnapshot)
	authed.GET("/vendors/:id/snapshot", vendorHandler.GetSnapshot)

	groupHandler := handlers.NewRuleGroupHandler(db)
	authed.POST("/rule-groups", groupHandler.Create)
	authed.GET("/rule-groups", groupHandler.List)
	authed.GET("/rule-groups/:id", groupHandler.Get)
	authed.PUT("/rule-groups/:id", groupHandler.Update)

	ruleHandler := handlers.NewRuleHandler(db)
	authed.POST("/rules", ruleHandler.Create)
	authed.GET("/rules", ruleHandler.List)
	authed.PUT("/rules/:id", ruleHandler.Update)
	authed.DELETE("/rules/:id", ruleHandler.Delete)

	templateHandler := handlers.NewAlertTemplateHandler(db)
	authed.POST("/alert-templates", templateHandler.Create)
	authed.GET("/alert-templates", templateHandler.List)
	authed.PUT("/alert-templates/:id", templateHandler.Update)
	authed.DELETE("/alert-templates/:id", templateHandler.Delete)

	evalHandler := handlers.NewEvaluationHandler(db, runner, resultCache)
	authed.POST("/evaluations/run", evalHandler.Run)
	authed.GET("/vendors/:id/evaluation", evalHandler.GetVendorResult)

	alertHandler := handlers.NewAlertHandler(db)
	authed.GET("/alerts", alertHandler.List)
	authed.POST("/alerts/:id/review", alertHandler.Review)
	authed.POST("/alerts/:id/resolve", alertHandler.Resolve)

	dashboardHandler := handlers.NewDashboardHandler(db)
	authed.GET("/dashboard/sla", dashboardHandler.SLA)
	authed.GET("/dashboard/compliance", dashboardHandler.Compliance)

	settingHandler := handlers.NewSettingHandler(db)
	authed.GET("/settings", settingHandler.List)
	authed.PUT("/settings/:key", settingHandler.Upsert)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, authCfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(authCfg.JWTSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
			return
		}

		c.Set("admin_id", admin.ID)
		c.Set("admin_username", admin.Username)
		c.Next()
	}
}
