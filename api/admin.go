package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bolidosrifas/raffle/internal/auth"
	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/bolidosrifas/raffle/internal/repository"
	"github.com/bolidosrifas/raffle/internal/service/purchases"
)

type AdminHandler struct {
	users     repository.UserRepository
	purchases purchases.PurchaseUseCase
	jwtSecret string
	tokenTTL  time.Duration
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type confirmRequest struct {
	PurchaseID int64  `json:"purchase_id"`
	Status     string `json:"status"`
}

type confirmResponse struct {
	Status        string   `json:"status"`
	MaskedNumbers []string `json:"masked_numbers,omitempty"`
	Reused        bool     `json:"reused,omitempty"`
}

func NewAdminHandler(users repository.UserRepository, service purchases.PurchaseUseCase, jwtSecret string, tokenTTL time.Duration) *AdminHandler {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AdminHandler{users: users, purchases: service, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.POST("/login", h.login)

	protected := router.Group("/", RequireAdmin(h.jwtSecret))
	protected.POST("/confirm", h.confirm)
}

func (h *AdminHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrInvalidCredentials.Error()})
		return
	}

	token, err := auth.NewToken(h.jwtSecret, user.ID, user.Email, user.Role, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PurchaseID == 0 || (req.Status != "approved" && req.Status != "rejected") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "purchase_id and status (approved|rejected) are required"})
		return
	}

	result, err := h.purchases.Confirm(c.Request.Context(), req.PurchaseID, req.Status == "approved")
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, confirmResponse{
		Status:        string(result.Purchase.Status),
		MaskedNumbers: result.Masked,
		Reused:        result.Reused,
	})
}
