package handler

import (
	"net/http"

	"inkwell-go/internal/middleware"
	"inkwell-go/internal/service"
	"inkwell-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// Services 汇总注册路由所需的全部业务服务。
type Services struct {
	JWT          *token.JWTManager
	User         service.UserService
	Admin        service.AdminService
	Conversation service.ConversationService
	Chat         service.ChatService
	Post         service.PostService
	Comment      service.CommentService
	Social       service.SocialService
	Holding      service.HoldingService
	Media        service.MediaService
	Search       service.SearchService
}

// RegisterRoutes 在 /api/v1 下注册所有业务路由。
func RegisterRoutes(r *gin.Engine, s Services) {
	authed := middleware.AuthMiddleware(s.JWT, s.User)
	optional := middleware.OptionalAuthMiddleware(s.JWT, s.User)

	userHandler := NewUserHandler(s.User, s.Social)
	postHandler := NewPostHandler(s.Post, s.Comment, s.Social)
	chatHandler := NewChatHandler(s.Chat, s.User, s.JWT)
	convHandler := NewConversationHandler(s.Conversation)
	holdingHandler := NewHoldingHandler(s.Holding)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", NewAuthHandler(s.User).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			users.GET("/me", authed, userHandler.GetProfile)
			users.PUT("/me", authed, userHandler.UpdateProfile)
			users.POST("/logout", authed, userHandler.Logout)

			users.GET("/:id", userHandler.PublicProfile)
			users.GET("/:id/followers", userHandler.Followers)
			users.GET("/:id/following", userHandler.Following)
			users.POST("/:id/follow", authed, userHandler.Follow)
			users.DELETE("/:id/follow", authed, userHandler.Unfollow)
		}

		posts := apiV1.Group("/posts")
		{
			posts.GET("", optional, postHandler.List)
			posts.POST("", authed, postHandler.Create)
			posts.GET("/:id", optional, postHandler.Get)
			posts.PUT("/:id", authed, postHandler.Update)
			posts.DELETE("/:id", authed, postHandler.Delete)
			posts.POST("/:id/like", authed, postHandler.Like)
			posts.DELETE("/:id/like", authed, postHandler.Unlike)
			posts.POST("/:id/bookmark", authed, postHandler.Bookmark)
			posts.DELETE("/:id/bookmark", authed, postHandler.RemoveBookmark)
			posts.GET("/:id/comments", optional, postHandler.ListComments)
			posts.POST("/:id/comments", authed, postHandler.CreateComment)
		}
		apiV1.DELETE("/comments/:id", authed, postHandler.DeleteComment)
		apiV1.GET("/bookmarks", authed, postHandler.ListBookmarks)

		// Search 路由组
		apiV1.GET("/search/posts", NewSearchHandler(s.Search).SearchPosts)

		if s.Media != nil {
			media := apiV1.Group("/media", authed)
			{
				mediaHandler := NewMediaHandler(s.Media)
				media.POST("", mediaHandler.Upload)
				media.GET("", mediaHandler.List)
			}
		}

		holdings := apiV1.Group("/holdings", authed)
		{
			holdings.GET("", holdingHandler.List)
			holdings.POST("", holdingHandler.Create)
			holdings.GET("/summary", holdingHandler.Summary)
			holdings.PUT("/:id", holdingHandler.Update)
			holdings.DELETE("/:id", holdingHandler.Delete)
		}

		// Conversation 路由组
		conversations := apiV1.Group("/conversations", authed)
		{
			conversations.GET("", convHandler.List)
			conversations.POST("", convHandler.Create)
			conversations.GET("/:id", convHandler.Get)
			conversations.PATCH("/:id", convHandler.Rename)
			conversations.DELETE("/:id", convHandler.Delete)
			conversations.POST("/:id/messages", chatHandler.Send)
			conversations.POST("/:id/stream", chatHandler.Stream)
		}

		// Chat 路由 (WebSocket)，token 放在路径中，因为浏览器无法为 WebSocket 设置请求头
		apiV1.GET("/chat/ws/:token", chatHandler.Handle)

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(authed, middleware.AdminAuthMiddleware())
		{
			adminHandler := NewAdminHandler(s.Admin)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/stats", adminHandler.Stats)
		}
	}
}
