package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avelkov/personachat/internal/auth"
	"github.com/avelkov/personachat/internal/httpapi/middleware"
	"github.com/avelkov/personachat/internal/models"
	"github.com/avelkov/personachat/internal/store"
)

type registerReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"email":     u.Email,
		"username":  u.Username,
		"createdAt": u.CreatedAt,
	}
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, token, int(auth.TokenTTL.Seconds()), "/", "", h.Cfg.CookieSecure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.Cfg.CookieSecure, true)
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if err := auth.ValidateEmail(req.Email); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := auth.ValidateUsername(req.Username); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Store.Users().GetByEmail(ctx, req.Email); err == nil {
		fail(c, http.StatusBadRequest, "user with this email or username already exists")
		return
	}
	if _, err := h.Store.Users().GetByUsername(ctx, req.Username); err == nil {
		fail(c, http.StatusBadRequest, "user with this email or username already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("[Register] hash password: %v", err)
		fail(c, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(c, http.StatusBadRequest, "user with this email or username already exists")
			return
		}
		log.Printf("[Register] create user: %v", err)
		fail(c, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		log.Printf("[Register] issue token: %v", err)
		fail(c, http.StatusInternalServerError, "internal server error")
		return
	}
	h.setSessionCookie(c, token)

	c.JSON(http.StatusCreated, gin.H{"user": userJSON(user)})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Store.Users().GetByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		log.Printf("[Login] issue token: %v", err)
		fail(c, http.StatusInternalServerError, "internal server error")
		return
	}
	h.setSessionCookie(c, token)

	c.JSON(http.StatusOK, gin.H{"user": userJSON(user)})
}

func (h *Handler) Logout(c *gin.Context) {
	token := auth.ExtractToken(c.Request)
	if token != "" && h.Redis != nil {
		if exp, err := h.Tokens.Expiry(token); err == nil {
			if err := h.Redis.BlacklistToken(c.Request.Context(), token, time.Until(exp)); err != nil {
				log.Printf("[Logout] blacklist token: %v", err)
			}
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	uid := middleware.UserID(c)
	user, err := h.Store.Users().GetByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[Me] get user: %v", err)
		fail(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(user)})
}
