package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bolidosrifas/raffle/internal/service/purchases"
)

type PurchaseHandler struct {
	service        purchases.PurchaseUseCase
	defaultEventID int64
}

type createPurchaseResponse struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func NewPurchaseHandler(service purchases.PurchaseUseCase, defaultEventID int64) *PurchaseHandler {
	if defaultEventID <= 0 {
		defaultEventID = 1
	}
	return &PurchaseHandler{service: service, defaultEventID: defaultEventID}
}

func (h *PurchaseHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/verify", h.verify)
}

func (h *PurchaseHandler) create(c *gin.Context) {
	var req purchases.CreatePurchaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purchase, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, createPurchaseResponse{
		ID:        purchase.ID,
		Reference: purchase.Reference,
		Status:    string(purchase.Status),
	})
}

// verify answers a buyer's "did my purchase go through" lookup, either by
// the phone used at intake or by a raw ticket number.
func (h *PurchaseHandler) verify(c *gin.Context) {
	phone := c.Query("phone")
	ticket := c.Query("ticket")
	if phone == "" && ticket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone or ticket is required"})
		return
	}

	if phone != "" {
		result, err := h.service.VerifyByPhone(c.Request.Context(), phone)
		if err != nil {
			status, body := errorResponse(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	number, err := strconv.Atoi(ticket)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket number"})
		return
	}
	eventID := h.defaultEventID
	if raw := c.Query("event_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			eventID = id
		}
	}
	status, err := h.service.VerifyTicket(c.Request.Context(), eventID, number)
	if err != nil {
		code, body := errorResponse(err)
		c.JSON(code, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
