package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	commissionapp "staykeeper/internal/app/handlers/commission"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/domain/shared/money"
)

type CommissionHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type payCommissionRequest struct {
	Method   string `json:"method"`
	IntentID string `json:"payment_intent_id"`
	Provider string `json:"provider"`
}

type failCommissionRequest struct {
	Reason string `json:"reason"`
}

type transitionCommissionRequest struct {
	Action string `json:"action"`
}

// Create lets the host of record request the commission for a confirmed
// booking when the event path has not produced it yet.
func (h CommissionHandler) Create(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	cmd := commissionapp.CreateCommissionCommand{BookingID: c.Param("id"), ActorIDV: host.ID}
	result, err := commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h CommissionHandler) Get(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	query := commissionapp.GetCommissionQuery{TransactionID: c.Param("id"), ActorIDV: user.ID}
	result, err := queries.Ask[commissionapp.GetCommissionQuery, dto.Commission](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) Pay(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	var req payCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := commissionapp.PayCommissionCommand{
		TransactionID: c.Param("id"),
		HostID:        host.ID,
		Method:        req.Method,
		IntentID:      req.IntentID,
		Provider:      req.Provider,
	}
	result, err := commands.Dispatch[commissionapp.PayCommissionCommand, *dto.Commission](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) Fail(c *gin.Context) {
	if _, ok := requireRole(c, RolePlatform); !ok {
		return
	}
	var req failCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := commissionapp.FailCommissionCommand{TransactionID: c.Param("id"), Reason: req.Reason}
	result, err := commands.Dispatch[commissionapp.FailCommissionCommand, *dto.Commission](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) Transition(c *gin.Context) {
	if _, ok := requireRole(c, RolePlatform); !ok {
		return
	}
	var req transitionCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := commissionapp.TransitionCommissionCommand{
		TransactionID: c.Param("id"),
		Action:        commissionapp.TransitionAction(strings.ToLower(strings.TrimSpace(req.Action))),
	}
	result, err := commands.Dispatch[commissionapp.TransitionCommissionCommand, *dto.Commission](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) ListHosted(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	query := commissionapp.ListHostCommissionsQuery{HostID: host.ID, Status: c.Query("status")}
	result, err := queries.Ask[commissionapp.ListHostCommissionsQuery, dto.CommissionCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) Pending(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	query := commissionapp.PendingCommissionsQuery{HostID: host.ID, Currency: c.Query("currency")}
	result, err := queries.Ask[commissionapp.PendingCommissionsQuery, dto.PendingCommissions](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) Earnings(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	query := commissionapp.HostEarningsQuery{HostID: host.ID, Currency: c.Query("currency")}
	result, err := queries.Ask[commissionapp.HostEarningsQuery, dto.HostEarnings](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PlatformRevenue is limited to platform tokens; from and to bound the
// transaction creation time.
func (h CommissionHandler) PlatformRevenue(c *gin.Context) {
	if _, ok := requireRole(c, RolePlatform); !ok {
		return
	}
	var query commissionapp.PlatformRevenueQuery
	if !parseDates(c, "from", "to", &query.From, &query.To) {
		return
	}
	query.Currency = c.Query("currency")
	result, err := queries.Ask[commissionapp.PlatformRevenueQuery, dto.PlatformRevenue](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CommissionHandler) Rate(c *gin.Context) {
	result, err := queries.Ask[commissionapp.GetCommissionRateQuery, dto.CommissionRate](c.Request.Context(), h.Queries, commissionapp.GetCommissionRateQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Preview quotes the split for an amount in minor units.
func (h CommissionHandler) Preview(c *gin.Context) {
	amount, err := strconv.ParseInt(strings.TrimSpace(c.Query("amount")), 10, 64)
	if err != nil {
		badRequest(c, "invalid amount")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		currency = money.DefaultCurrency
	}
	query := commissionapp.PreviewCommissionQuery{Amount: amount, Currency: currency}
	result, err := queries.Ask[commissionapp.PreviewCommissionQuery, dto.CommissionPreview](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ CommissionHTTP = CommissionHandler{}
