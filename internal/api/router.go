package api

import (
	"github.com/gin-gonic/gin"
	"github.com/marcusw/jobtrack/internal/api/handler"
	"github.com/marcusw/jobtrack/internal/api/middleware"
	"github.com/marcusw/jobtrack/internal/config"
	"github.com/marcusw/jobtrack/internal/repository"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin engine with middleware and the read-only
// query routes.
func SetupRouter(
	cfg *config.Config,
	db *gorm.DB,
	postings *repository.PostingRepository,
	roles *repository.RoleRepository,
	runs *repository.RunRepository,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(db)
	jobHandler := handler.NewJobHandler(postings)
	statsHandler := handler.NewStatsHandler(postings, roles, runs)

	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/:id", jobHandler.Get)
		v1.GET("/roles", statsHandler.Roles)
		v1.GET("/runs", statsHandler.Runs)
		v1.GET("/stats", statsHandler.Stats)
	}

	return router
}
