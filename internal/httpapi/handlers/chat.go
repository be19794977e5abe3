package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelkov/personachat/internal/chat"
	"github.com/avelkov/personachat/internal/common"
	"github.com/avelkov/personachat/internal/httpapi/middleware"
)

type sendMessageReq struct {
	Message     string `json:"message"`
	CharacterID string `json:"characterId"`
	ChatID      string `json:"chatId"`
}

func (h *Handler) mapChatErr(c *gin.Context, context string, err error) {
	switch {
	case common.IsValidation(err):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrCharacterNotFound):
		fail(c, http.StatusNotFound, "character not found")
	case errors.Is(err, chat.ErrChatNotFound):
		fail(c, http.StatusNotFound, "chat not found")
	case errors.Is(err, chat.ErrJobNotFound):
		fail(c, http.StatusNotFound, "job not found")
	case errors.Is(err, chat.ErrUpstream):
		log.Printf("[%s] %v", context, err)
		fail(c, http.StatusInternalServerError, "failed to generate a reply")
	default:
		log.Printf("[%s] %v", context, err)
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

// SendMessage runs one synchronous conversation turn.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Message == "" || req.CharacterID == "" {
		fail(c, http.StatusBadRequest, "message and characterId are required")
		return
	}

	turn, err := h.Chats.SendMessage(c.Request.Context(), middleware.UserID(c), req.CharacterID, req.Message, req.ChatID)
	if err != nil {
		h.mapChatErr(c, "SendMessage", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": turn.Message,
		"chatId":  turn.ChatID,
	})
}

// ChatHistory returns the messages of one of the requester's chats.
func (h *Handler) ChatHistory(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		fail(c, http.StatusBadRequest, "chatId is required")
		return
	}

	msgs, err := h.Chats.History(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		h.mapChatErr(c, "ChatHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ListChats returns the requester's chats, most recently updated first.
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Chats.ListChats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.mapChatErr(c, "ListChats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// SendMessageAsync persists the user turn, queues a job for the reply
// worker, and returns the job id for polling.
func (h *Handler) SendMessageAsync(c *gin.Context) {
	if h.Rabbit == nil {
		fail(c, http.StatusNotFound, "route not found")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Message == "" || req.CharacterID == "" {
		fail(c, http.StatusBadRequest, "message and characterId are required")
		return
	}

	job, err := h.Chats.PrepareJob(c.Request.Context(), middleware.UserID(c), req.CharacterID, req.Message, req.ChatID)
	if err != nil {
		h.mapChatErr(c, "SendMessageAsync", err)
		return
	}

	if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
		log.Printf("[SendMessageAsync] publish job %s: %v", job.ID, err)
		fail(c, http.StatusInternalServerError, "enqueue failed")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"chatId": job.ChatID,
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	job, err := h.Chats.GetJob(c.Request.Context(), middleware.UserID(c), c.Param("job_id"))
	if err != nil {
		h.mapChatErr(c, "GetChatJob", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}
