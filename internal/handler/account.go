package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"transit/internal/middleware"
	"transit/internal/service"
)

// AccountHandler handles HTTP requests for balance accounts.
type AccountHandler struct {
	balanceService *service.BalanceService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(balanceService *service.BalanceService) *AccountHandler {
	return &AccountHandler{balanceService: balanceService}
}

// TopupRequest is the HTTP request body for crediting an account.
type TopupRequest struct {
	Amount string `json:"amount"`
}

// AccountResponse is the HTTP response for account operations.
type AccountResponse struct {
	UserID     string `json:"userId"`
	Balance    string `json:"balance"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// Topup handles POST /account/topup
func (h *AccountHandler) Topup(c *gin.Context) {
	var req TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
		return
	}

	account, err := h.balanceService.Topup(c.Request.Context(), middleware.UserID(c), amount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AccountResponse{
		UserID:     account.UserID,
		Balance:    account.Balance.StringFixed(2),
		UpdateTime: account.UpdateTime.Format(timeLayout),
	})
}

// Balance handles GET /account/balance
func (h *AccountHandler) Balance(c *gin.Context) {
	account, err := h.balanceService.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := AccountResponse{
		UserID:  account.UserID,
		Balance: account.Balance.StringFixed(2),
	}
	if !account.UpdateTime.IsZero() {
		response.UpdateTime = account.UpdateTime.Format(timeLayout)
	}

	respondJSON(c, http.StatusOK, response)
}
