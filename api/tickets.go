package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/bolidosrifas/raffle/internal/service/tickets"
)

type TicketHandler struct {
	service        tickets.TicketUseCase
	defaultEventID int64
}

type reserveRequest struct {
	EventID int64 `json:"event_id"`
	Numbers []int `json:"numbers"`
	Minutes int   `json:"minutes"`
}

type reserveResponse struct {
	Reserved  []int `json:"reserved"`
	Conflicts []int `json:"conflicts,omitempty"`
}

type sellRequest struct {
	EventID int64 `json:"event_id"`
	Numbers []int `json:"numbers"`
}

type sellResponse struct {
	Updated   int   `json:"updated"`
	Conflicts []int `json:"conflicts,omitempty"`
}

type availabilityResponse struct {
	Sold     []int `json:"sold"`
	Reserved []int `json:"reserved"`
}

func NewTicketHandler(service tickets.TicketUseCase, defaultEventID int64) *TicketHandler {
	if defaultEventID <= 0 {
		defaultEventID = 1
	}
	return &TicketHandler{service: service, defaultEventID: defaultEventID}
}

func (h *TicketHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.availability)
	router.POST("/reserve", h.reserve)
	router.POST("/sell", h.sell)
}

func (h *TicketHandler) availability(c *gin.Context) {
	eventID := h.eventID(c.Query("event_id"))
	avail, err := h.service.Availability(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, availabilityResponse{Sold: avail.Sold, Reserved: avail.Reserved})
}

func (h *TicketHandler) reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EventID == 0 {
		req.EventID = h.defaultEventID
	}

	result, err := h.service.Reserve(c.Request.Context(), req.EventID, req.Numbers, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	switch {
	case len(result.Reserved) == 0:
		c.JSON(http.StatusConflict, reserveResponse{Reserved: []int{}, Conflicts: result.Conflicts})
	case len(result.Conflicts) > 0:
		c.JSON(http.StatusMultiStatus, reserveResponse{Reserved: result.Reserved, Conflicts: result.Conflicts})
	default:
		c.JSON(http.StatusOK, reserveResponse{Reserved: result.Reserved})
	}
}

func (h *TicketHandler) sell(c *gin.Context) {
	var req sellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EventID == 0 {
		req.EventID = h.defaultEventID
	}

	result, err := h.service.Sell(c.Request.Context(), req.EventID, req.Numbers)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	if len(result.Conflicts) > 0 {
		c.JSON(http.StatusConflict, sellResponse{Conflicts: result.Conflicts})
		return
	}
	c.JSON(http.StatusOK, sellResponse{Updated: result.Updated})
}

func (h *TicketHandler) eventID(raw string) int64 {
	if raw == "" {
		return h.defaultEventID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return h.defaultEventID
	}
	return id
}

func errorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, domain.ErrPurchaseNotFound), errors.Is(err, domain.ErrTicketNotFound), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, domain.ErrInsufficientInventory), errors.Is(err, domain.ErrPurchaseRejected), errors.Is(err, domain.ErrNumbersConflict):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"error": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error()}
	}
}
