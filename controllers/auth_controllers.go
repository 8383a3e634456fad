package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/middlewares"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

var errInvalidCredentials = errors.New("invalid credentials")

type AuthController struct {
	DB     *gorm.DB
	Issuer *utils.TokenIssuer
	Store  services.CredentialStore
}

func NewAuthController(db *gorm.DB, issuer *utils.TokenIssuer, store services.CredentialStore) *AuthController {
	return &AuthController{DB: db, Issuer: issuer, Store: store}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// Register creates a client, restaurant or delivery account. Admins are created by admins.
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}

	role := models.RoleClient
	if req.Role != "" {
		parsed, ok := models.ParseRole(req.Role)
		if !ok || parsed == models.RoleAdmin {
			utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", errors.New("role must be client, restaurant or delivery"))
			return
		}
		role = parsed
	}

	user, err := createUser(ac.DB, req.Name, req.Email, req.Password, role)
	if err != nil {
		respondCreateUserError(c, err)
		return
	}

	utils.InfoLogger.Printf("New user registered: %s (role=%s)", user.Email, user.Role)
	utils.RespondJSON(c, http.StatusCreated, "User registered", gin.H{
		"user_id": user.ID,
		"role":    user.Role,
	})
}

// Login issues a token and makes it the account's only active session.
func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}

	var user models.User
	if err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error; err != nil {
		utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", errInvalidCredentials)
		return
	}

	issued, err := ac.Issuer.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	// Without a recorded session the token would be rejected everywhere, so fail the login.
	if err := ac.Store.Activate(c.Request.Context(), user.ID, issued.TokenID, issued.IssuedAt, issued.ExpiresAt); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Login successful for user: %s, role: %s", user.Email, user.Role)
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":      issued.Token,
		"user_id":    user.ID,
		"user_role":  user.Role,
		"expires_at": issued.ExpiresAt,
	})
}

// Logout revokes the token the request was made with.
func (ac *AuthController) Logout(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	tokenID := c.GetString(middlewares.CtxTokenID)
	expiresAt, _ := c.Get(middlewares.CtxExpiresAt)
	exp, _ := expiresAt.(time.Time)
	if exp.IsZero() {
		exp = time.Now().Add(ac.Issuer.TTL())
	}

	if err := ac.Store.Revoke(c.Request.Context(), actor.UserID, tokenID, exp); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("User %d logged out", actor.UserID)
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

func createUser(db *gorm.DB, name, email, password string, role models.Role) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, errEmailTaken
	}

	user := models.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

var errEmailTaken = errors.New("email already registered")

func respondCreateUserError(c *gin.Context, err error) {
	if errors.Is(err, errEmailTaken) {
		utils.RespondErrorCode(c, http.StatusConflict, "email_taken", err)
		return
	}
	utils.RespondError(c, http.StatusInternalServerError, err)
}
