package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-showcase-api/middleware"
	"research-showcase-api/models"
	"research-showcase-api/services"
	"research-showcase-api/utils"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
	User      models.User `json:"user"`
	Message   string      `json:"message"`
}

// Login handles user authentication
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Email and password are required")
		return
	}

	user, err := deps.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expires, err := middleware.GenerateToken(user, deps.JWTSecret, deps.TokenTTL)
	if err != nil {
		respondError(c, utils.WrapError(err, utils.CodeInternal, "Failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expires.Unix(),
		User:      *user,
		Message:   "Login successful",
	})
}

// GetProfile returns current user profile
func GetProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	user, err := deps.Accounts.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword updates the caller's password after checking the current one.
func ChangePassword(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Current and new password are required")
		return
	}
	if err := deps.Accounts.ChangePassword(c.Request.Context(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

type CreateUserRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email" binding:"required"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role" binding:"required"`
}

// CreateUser lets an administrator add a faculty or admin account.
func CreateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email, password and role are required")
		return
	}
	role, _ := models.ParseRole(req.Role)
	user, err := deps.Accounts.Create(c.Request.Context(), actor, services.NewUserInput{
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Department: req.Department,
		Password:   req.Password,
		Role:       role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}
