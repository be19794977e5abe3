package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelkov/personachat/internal/auth"
	"github.com/avelkov/personachat/internal/character"
	"github.com/avelkov/personachat/internal/chat"
	"github.com/avelkov/personachat/internal/config"
	"github.com/avelkov/personachat/internal/store"
	"github.com/avelkov/personachat/internal/store/rabbitmq"
	"github.com/avelkov/personachat/internal/store/redisstore"
)

type Handler struct {
	Store      store.Store
	Cfg        config.Config
	Tokens     *auth.TokenManager
	Characters *character.Service
	Chats      *chat.Service

	// Optional collaborators; nil disables the feature.
	Redis  *redisstore.Store
	Rabbit *rabbitmq.Publisher
}

func NewHandler(st store.Store, cfg config.Config, tokens *auth.TokenManager, characters *character.Service, chats *chat.Service) *Handler {
	return &Handler{
		Store:      st,
		Cfg:        cfg,
		Tokens:     tokens,
		Characters: characters,
		Chats:      chats,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
