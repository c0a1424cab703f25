package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"transit/internal/domain"
	"transit/internal/middleware"
	"transit/internal/service"
)

// TransitHandler handles HTTP requests for the trip lifecycle.
type TransitHandler struct {
	transitService *service.TransitService
}

// NewTransitHandler creates a new TransitHandler.
func NewTransitHandler(transitService *service.TransitService) *TransitHandler {
	return &TransitHandler{transitService: transitService}
}

// EntryRequest is the HTTP request body for a tap-in.
type EntryRequest struct {
	Mode         string    `json:"mode"`
	EntryStation string    `json:"entryStation"`
	EntryTime    time.Time `json:"entryTime"`
	DeviceID     string    `json:"deviceId"`
}

// EntryResponse is the HTTP response for a tap-in.
type EntryResponse struct {
	TransitID    string `json:"transitId"`
	Mode         string `json:"mode"`
	EntryStation string `json:"entryStation"`
	EntryTime    string `json:"entryTime"`
	EntryLine    string `json:"entryLine"`
	UserID       string `json:"userId"`
	Status       int    `json:"status"`
}

// Entry handles POST /transit/entry
func (h *TransitHandler) Entry(c *gin.Context) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.transitService.Entry(c.Request.Context(), service.EntryRequest{
		UserID:   middleware.UserID(c),
		Mode:     req.Mode,
		Station:  req.EntryStation,
		DeviceID: req.DeviceID,
		At:       req.EntryTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EntryResponse{
		TransitID:    result.Trip.ID,
		Mode:         result.Trip.Mode,
		EntryStation: result.Site.Name,
		EntryTime:    result.Trip.EntryTime.Format(timeLayout),
		EntryLine:    result.Site.Line,
		UserID:       result.Trip.UserID,
		Status:       statusNormal,
	})
}

// ExitRequest is the HTTP request body for a tap-out.
type ExitRequest struct {
	Mode        string    `json:"mode"`
	ExitStation string    `json:"exitStation"`
	ExitTime    time.Time `json:"exitTime"`
	DeviceID    string    `json:"deviceId"`
}

// ExitResponse is the HTTP response for a tap-out.
type ExitResponse struct {
	TransitID       string `json:"transitId"`
	Mode            string `json:"mode"`
	Status          int    `json:"status"`
	Reason          string `json:"reason,omitempty"`
	Fee             string `json:"fee,omitempty"`
	DurationSeconds int64  `json:"duration"`
	TransactionID   string `json:"transactionId,omitempty"`
}

// Exit handles POST /transit/exit
func (h *TransitHandler) Exit(c *gin.Context) {
	var req ExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.transitService.Exit(c.Request.Context(), service.ExitRequest{
		UserID:   middleware.UserID(c),
		Mode:     req.Mode,
		Station:  req.ExitStation,
		DeviceID: req.DeviceID,
		At:       req.ExitTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := ExitResponse{
		TransitID:       result.Trip.ID,
		Mode:            result.Trip.Mode,
		Status:          settlementStatus(result.Status),
		Reason:          result.Reason,
		DurationSeconds: int64(result.Duration.Seconds()),
		TransactionID:   result.TransactionID,
	}
	if result.Status != domain.TripStatusTravelAnomaly {
		response.Fee = result.Fare.StringFixed(2)
	}

	respondJSON(c, http.StatusOK, response)
}

// RepayRequest is the HTTP request body for repaying a payment failure.
type RepayRequest struct {
	TransitID     string    `json:"transitId"`
	Amount        string    `json:"amount"`
	PayTime       time.Time `json:"payTime"`
	TransactionID string    `json:"transactionId"`
}

// RepayResponse is the HTTP response for a successful repay.
type RepayResponse struct {
	Status        int    `json:"status"`
	ClearedAt     string `json:"clearedAt"`
	TransactionID string `json:"transactionId"`
}

// Repay handles POST /transit/repay
func (h *TransitHandler) Repay(c *gin.Context) {
	var req RepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
		return
	}

	result, err := h.transitService.Repay(c.Request.Context(), service.RepayRequest{
		UserID:        middleware.UserID(c),
		TripID:        req.TransitID,
		Amount:        amount,
		PayTime:       req.PayTime,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RepayResponse{
		Status:        statusNormal,
		ClearedAt:     result.ClearedAt.Format(timeLayout),
		TransactionID: result.TransactionID,
	})
}

// TripResponse is the HTTP representation of one trip record.
type TripResponse struct {
	TransitID       string `json:"transitId"`
	Mode            string `json:"mode"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	EntrySiteID     string `json:"entrySiteId"`
	EntryTime       string `json:"entryTime"`
	ExitSiteID      string `json:"exitSiteId,omitempty"`
	ExitTime        string `json:"exitTime,omitempty"`
	Fare            string `json:"fare,omitempty"`
	ActualAmount    string `json:"actualAmount,omitempty"`
	DurationSeconds int64  `json:"duration,omitempty"`
	TransactionID   string `json:"transactionId,omitempty"`
	ClearedAt       string `json:"clearedAt,omitempty"`
}

// Records handles GET /transit/records?limit=
func (h *TransitHandler) Records(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	trips, err := h.transitService.Records(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, trip := range trips {
		response = append(response, tripResponse(trip))
	}

	respondJSON(c, http.StatusOK, response)
}

// Detail handles GET /transit/detail/:transitId
func (h *TransitHandler) Detail(c *gin.Context) {
	trip, err := h.transitService.Detail(c.Request.Context(), middleware.UserID(c), c.Param("transitId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

func tripResponse(trip *domain.Trip) TripResponse {
	response := TripResponse{
		TransitID:     trip.ID,
		Mode:          trip.Mode,
		Status:        string(trip.Status),
		Reason:        trip.FailureReason,
		EntrySiteID:   trip.EntrySiteID,
		EntryTime:     trip.EntryTime.Format(timeLayout),
		ExitSiteID:    trip.ExitSiteID,
		TransactionID: trip.SettlementTransactionID,
	}

	if !trip.ExitTime.IsZero() {
		response.ExitTime = trip.ExitTime.Format(timeLayout)
		response.DurationSeconds = int64(trip.Duration().Seconds())
	}
	if !trip.ClearedAt.IsZero() {
		response.ClearedAt = trip.ClearedAt.Format(timeLayout)
	}

	switch trip.Status {
	case domain.TripStatusSettled:
		response.Fare = trip.FareAmount.StringFixed(2)
		response.ActualAmount = trip.ActualAmount.StringFixed(2)
	case domain.TripStatusPaymentFailed:
		response.Fare = trip.FareAmount.StringFixed(2)
	}

	return response
}

func settlementStatus(status domain.TripStatus) int {
	switch status {
	case domain.TripStatusPaymentFailed:
		return statusPaymentAnomaly
	case domain.TripStatusTravelAnomaly:
		return statusTravelAnomaly
	default:
		return statusNormal
	}
}

