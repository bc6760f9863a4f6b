package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taskforge-dev/taskforge/internal/handlers"
	"github.com/taskforge-dev/taskforge/internal/middleware"
	"github.com/taskforge-dev/taskforge/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register)
			auth.POST("/login", handlers.Login)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.PUT("/profile", middleware.AuthMiddleware(), handlers.UpdateProfile)
			auth.PUT("/password", middleware.AuthMiddleware(), handlers.UpdatePassword)
			auth.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
		}

		tasks := api.Group("/tasks", middleware.AuthMiddleware())
		{
			tasks.POST("", handlers.CreateTask)
			tasks.GET("", handlers.ListTasks)
			tasks.GET("/my-tasks", handlers.ListMyTasks)
			tasks.GET("/:id", handlers.GetTask)
			tasks.PUT("/:id", handlers.UpdateTask)
			tasks.PUT("/:id/complete", handlers.CompleteTask)
			tasks.DELETE("/:id", handlers.DeleteTask)

			// Sub-entity collections hang off the parent task.
			tasks.POST("/:id/comments", handlers.CreateComment)
			tasks.GET("/:id/comments", handlers.ListComments)
			tasks.POST("/:id/attachments", handlers.UploadAttachment)
			tasks.GET("/:id/attachments", handlers.ListAttachments)
		}

		teams := api.Group("/teams", middleware.AuthMiddleware())
		{
			teams.POST("", handlers.CreateTeam)
			teams.GET("", handlers.ListTeams)
			teams.GET("/:id", handlers.GetTeam)
			teams.PUT("/:id", handlers.UpdateTeam)
			teams.DELETE("/:id", handlers.DeleteTeam)
			teams.POST("/:id/members", handlers.AddMember)
			teams.DELETE("/:id/members/:user_id", handlers.RemoveMember)
		}

		comments := api.Group("/comments", middleware.AuthMiddleware())
		{
			comments.PUT("/:id", handlers.UpdateComment)
			comments.DELETE("/:id", handlers.DeleteComment)
		}

		attachments := api.Group("/attachments", middleware.AuthMiddleware())
		{
			attachments.GET("/:id/download", handlers.DownloadAttachment)
			attachments.DELETE("/:id", handlers.DeleteAttachment)
		}
	}

	return r
}
