package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/photofolio/internal/service"
	"go.uber.org/zap"
)

const (
	sessionUserID = "user_id"
	sessionEmail  = "email"
)

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Login 校验账号密码并建立后台会话。非管理员邮箱的账号直接拒绝，不写入会话。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Please enter your email and password.")
		return
	}

	user, err := a.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		a.logger.Error("login lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Login failed.")
		return
	}
	if !a.auth.IsAdmin(user.Email) {
		respondError(c, http.StatusForbidden, "Access denied. This area is for administrators only.")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserID, user.ID)
	session.Set(sessionEmail, user.Email)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save session.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

// Session 返回当前登录状态
func (a *API) Session(c *gin.Context) {
	email, _ := sessions.Default(c).Get(sessionEmail).(string)
	if email == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"email":         email,
		"admin":         a.auth.IsAdmin(email),
	})
}

// AdminRequired 仅放行会话邮箱与管理员邮箱一致的请求。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, _ := sessions.Default(c).Get(sessionEmail).(string)
		if email == "" {
			respondError(c, http.StatusUnauthorized, "Please log in.")
			c.Abort()
			return
		}
		if !a.auth.IsAdmin(email) {
			respondError(c, http.StatusForbidden, "Access denied. This area is for administrators only.")
			c.Abort()
			return
		}
		c.Next()
	}
}
