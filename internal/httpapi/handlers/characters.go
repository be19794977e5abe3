package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelkov/personachat/internal/character"
	"github.com/avelkov/personachat/internal/common"
	"github.com/avelkov/personachat/internal/httpapi/middleware"
)

func (h *Handler) mapCharacterErr(c *gin.Context, context string, err error) {
	switch {
	case common.IsValidation(err):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, character.ErrNotFound):
		fail(c, http.StatusNotFound, "character not found")
	case errors.Is(err, character.ErrAccessDenied):
		fail(c, http.StatusForbidden, "only the creator may modify this character")
	default:
		log.Printf("[%s] %v", context, err)
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) CreateCharacter(c *gin.Context) {
	var in character.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	ch, err := h.Characters.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		h.mapCharacterErr(c, "CreateCharacter", err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (h *Handler) ListCharacters(c *gin.Context) {
	f := character.ListFilter{
		CreatorID: c.Query("creator"),
		Search:    c.Query("search"),
	}

	out, err := h.Characters.List(c.Request.Context(), middleware.UserID(c), f)
	if err != nil {
		h.mapCharacterErr(c, "ListCharacters", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCharacter(c *gin.Context) {
	ch, err := h.Characters.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.mapCharacterErr(c, "GetCharacter", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *Handler) UpdateCharacter(c *gin.Context) {
	var in character.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	ch, err := h.Characters.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		h.mapCharacterErr(c, "UpdateCharacter", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *Handler) DeleteCharacter(c *gin.Context) {
	if err := h.Characters.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.mapCharacterErr(c, "DeleteCharacter", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "character deleted"})
}
