package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelkov/personachat/internal/httpapi/handlers"
	"github.com/avelkov/personachat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	var blacklist middleware.TokenBlacklist
	if h.Redis != nil {
		blacklist = h.Redis
	}
	required := middleware.AuthRequired(h.Tokens, blacklist)
	optional := middleware.OptionalAuth(h.Tokens, blacklist)

	r.GET("/ping", h.Ping)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", required, h.Me)
	}

	// Reads are open but viewer-dependent; writes need a session.
	characters := r.Group("/characters")
	{
		characters.GET("", optional, h.ListCharacters)
		characters.GET("/:id", optional, h.GetCharacter)
		characters.POST("", required, h.CreateCharacter)
		characters.PUT("/:id", required, h.UpdateCharacter)
		characters.DELETE("/:id", required, h.DeleteCharacter)
	}

	chatGroup := r.Group("/", required)
	{
		chatGroup.POST("/chat", h.SendMessage)
		chatGroup.GET("/chat", h.ChatHistory)
		chatGroup.GET("/chats", h.ListChats)
		if h.Rabbit != nil {
			chatGroup.POST("/chat/async", h.SendMessageAsync)
			chatGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
		}
	}

	return r
}
