package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-showcase-api/controllers"
	"research-showcase-api/middleware"
	"research-showcase-api/models"
)

// SetupRoutes registers the API under /api/v1. jwtSecret signs and verifies bearer tokens.
func SetupRoutes(router *gin.Engine, jwtSecret string) {
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", controllers.Login)

			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Research Showcase API is running",
				})
			})

			public.GET("/projects/search", controllers.SearchProjects)
			public.GET("/projects/recent", controllers.GetRecentProjects)
			public.GET("/projects/:id", controllers.GetProject)
			public.GET("/semesters", controllers.GetSemesters)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetNotifications)
				notifications.GET("/unread-count", controllers.GetUnreadCount)
				notifications.PATCH("/:id/read", controllers.MarkNotificationRead)
				notifications.POST("/mark-all-read", controllers.MarkAllNotificationsRead)
				notifications.PUT("/preferences", controllers.UpdateNotificationPreferences)
			}

			submissions := protected.Group("/submissions")
			submissions.Use(middleware.RequireRole(models.RoleFaculty, models.RoleAdmin))
			{
				submissions.POST("", controllers.CreateSubmission)
				submissions.GET("/mine", controllers.GetMySubmissions)
				submissions.GET("/:id", controllers.GetSubmission)
				submissions.GET("/:id/history", controllers.GetSubmissionHistory)
				submissions.PUT("/:id", controllers.UpdateSubmission)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/review", controllers.GetReviewQueue)
				admin.POST("/submissions/:id/approve", controllers.ApproveSubmission)
				admin.POST("/submissions/:id/reject", controllers.RejectSubmission)
				admin.POST("/submissions/:id/request-revision", controllers.RequestRevision)
				admin.POST("/users", controllers.CreateUser)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "not_found", "message": "Endpoint not found"},
		})
	})
}
