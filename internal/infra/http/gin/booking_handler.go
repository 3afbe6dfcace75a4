package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	bookingapp "staykeeper/internal/app/handlers/booking"
	"staykeeper/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID       string `json:"listing_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Guests          int    `json:"guests"`
	DiscountCode    string `json:"discount_code"`
	SpecialRequests string `json:"special_requests"`
}

type hostResponseRequest struct {
	Message string `json:"message"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

type paymentStatusRequest struct {
	Status string `json:"status"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		respondError(c, h.Logger, errBusUnavailable)
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	checkIn, err := parseDate(req.CheckIn)
	if err != nil {
		badRequest(c, "invalid check_in")
		return
	}
	checkOut, err := parseDate(req.CheckOut)
	if err != nil {
		badRequest(c, "invalid check_out")
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		GuestID:         user.ID,
		ListingID:       strings.TrimSpace(req.ListingID),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		DiscountCode:    req.DiscountCode,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{BookingID: c.Param("id"), ActorIDV: user.ID}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	var req hostResponseRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.ConfirmBookingCommand{BookingID: c.Param("id"), HostID: host.ID, Message: req.Message}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingStatus](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Reject(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	var req hostResponseRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.RejectBookingCommand{BookingID: c.Param("id"), HostID: host.ID, Message: req.Message}
	result, err := commands.Dispatch[bookingapp.RejectBookingCommand, *dto.BookingStatus](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if !bindOptional(c, &req) {
		return
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), ActorIDV: user.ID, Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.CancellationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CheckIn(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	cmd := bookingapp.CheckInCommand{BookingID: c.Param("id"), ActorIDV: user.ID}
	result, err := commands.Dispatch[bookingapp.CheckInCommand, *dto.BookingStatus](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CheckOut(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	cmd := bookingapp.CheckOutCommand{BookingID: c.Param("id"), ActorIDV: user.ID}
	result, err := commands.Dispatch[bookingapp.CheckOutCommand, *dto.BookingStatus](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PaymentStatus is called by the payment collaborator.
func (h BookingHandler) PaymentStatus(c *gin.Context) {
	if _, ok := requireRole(c, RolePlatform); !ok {
		return
	}
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := bookingapp.UpdatePaymentStatusCommand{BookingID: c.Param("id"), Status: req.Status}
	result, err := commands.Dispatch[bookingapp.UpdatePaymentStatusCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := authenticated(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	query := bookingapp.ListGuestBookingsQuery{GuestID: user.ID, Status: c.Query("status"), Limit: limit, Offset: offset}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListHosted(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	query := bookingapp.ListHostBookingsQuery{HostID: host.ID, Status: c.Query("status"), Limit: limit, Offset: offset}
	result, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListListing pages a hosted listing's bookings, latest check-in first.
func (h BookingHandler) ListListing(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	query := bookingapp.ListListingBookingsQuery{
		HostID:    host.ID,
		ListingID: c.Param("id"),
		Status:    c.Query("status"),
		Limit:     limit,
		Offset:    offset,
	}
	result, err := queries.Ask[bookingapp.ListListingBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListingStats(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}
	query := bookingapp.ListingStatsQuery{HostID: host.ID, ListingID: c.Param("id"), Days: days}
	result, err := queries.Ask[bookingapp.ListingStatsQuery, dto.ListingStats](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Upcoming(c *gin.Context) {
	host, ok := authenticated(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	query := bookingapp.UpcomingBookingsQuery{HostID: host.ID, Limit: limit}
	result, err := queries.Ask[bookingapp.UpcomingBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

var _ BookingHTTP = BookingHandler{}
