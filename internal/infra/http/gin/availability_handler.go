package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staykeeper/internal/app/dto"
	availabilityapp "staykeeper/internal/app/handlers/availability"
	bookingapp "staykeeper/internal/app/handlers/booking"
	"staykeeper/internal/app/queries"
)

// AvailabilityHandler serves the public listing reads: calendar,
// availability check and price preview.
type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	var from, to time.Time
	if !parseDates(c, "from", "to", &from, &to) {
		return
	}
	query := availabilityapp.GetCalendarQuery{ListingID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	var checkIn, checkOut time.Time
	if !parseDates(c, "check_in", "check_out", &checkIn, &checkOut) {
		return
	}
	query := availabilityapp.GetAvailabilityQuery{
		ListingID:        c.Param("id"),
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		ExcludeBookingID: c.Query("exclude_booking_id"),
	}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Price(c *gin.Context) {
	var checkIn, checkOut time.Time
	if !parseDates(c, "check_in", "check_out", &checkIn, &checkOut) {
		return
	}
	query := bookingapp.PreviewPricingQuery{
		ListingID:    c.Param("id"),
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		DiscountCode: c.Query("discount_code"),
	}
	result, err := queries.Ask[bookingapp.PreviewPricingQuery, dto.PricePreview](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
