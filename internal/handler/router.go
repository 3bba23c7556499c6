package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brunoamorim39/greasemonkey-ai/internal/middleware"
)

type RouterDeps struct {
	Tiers        *TierHandler
	Usage        *UsageHandler
	Search       *SearchHandler
	Documents    *DocumentHandler
	Vehicles     *VehicleHandler
	JWTSecret    []byte
	AdminKeyHash string
	RateLimitGap time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	limited := middleware.RateLimit(deps.RateLimitGap)

	authGroup.GET("/tier", deps.Tiers.Get)
	authGroup.GET("/usage", deps.Usage.Report)
	authGroup.POST("/quota/check", deps.Usage.Check)
	authGroup.POST("/usage/record", deps.Usage.Record)

	authGroup.POST("/search", limited, deps.Search.Search)

	authGroup.POST("/documents", limited, deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.POST("/vehicles", deps.Vehicles.Create)
	authGroup.GET("/vehicles", deps.Vehicles.List)
	authGroup.DELETE("/vehicles/:id", deps.Vehicles.Delete)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AdminKey(deps.AdminKeyHash))
	adminGroup.POST("/tier", deps.Tiers.Assign)
	adminGroup.POST("/tier-override", deps.Tiers.SetOverride)
}
