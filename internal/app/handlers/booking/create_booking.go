package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	handlersupport "staykeeper/internal/app/handlers/support"
	"staykeeper/internal/app/middleware"
	"staykeeper/internal/app/outbox"
	"staykeeper/internal/app/policies"
	"staykeeper/internal/domain/availability"
	domainbooking "staykeeper/internal/domain/booking"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	domainuser "staykeeper/internal/domain/user"
)

const createBookingKey = "booking.create"

type CreateBookingCommand struct {
	BookingID       string
	GuestID         string    `validate:"required"`
	ListingID       string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int       `validate:"gte=1"`
	DiscountCode    string    `validate:"max=64"`
	SpecialRequests string
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) ActorID() string { return c.GuestID }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

// CreateBookingHandler prices the stay and persists it in the awaiting-host
// state. The availability check and the insert share the caller's unit of
// work, with the listing locked in between.
type CreateBookingHandler struct {
	Discounts policies.DiscountPort
	Outbox    outbox.Outbox
	Encoder   outbox.EventEncoder
	Clock     clock.Clock
	Logger    *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := clock.OrSystem(h.Clock).Now()

	dr, err := daterange.NewDates(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(strings.TrimSpace(cmd.ListingID)))
	if err != nil {
		return nil, err
	}
	price, err := quote(ctx, h.Discounts, listing, dr, cmd.DiscountCode)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(cmd.BookingID)
	if id == "" {
		id = uuid.NewString()
	}
	booking, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:              domainbooking.BookingID(id),
		Listing:         listing,
		GuestID:         domainuser.ID(strings.TrimSpace(cmd.GuestID)),
		Range:           dr,
		Guests:          cmd.Guests,
		Price:           price,
		SpecialRequests: cmd.SpecialRequests,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	oracle := availability.Oracle{Bookings: unit.Bookings()}
	err = oracle.Reserve(ctx, listing.ID, dr, "", func(ctx context.Context) error {
		return persist(ctx, unit.Bookings(), h.Outbox, h.Encoder, booking)
	})
	if err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking requested",
			"booking_id", booking.ID,
			"listing_id", booking.ListingID,
			"guest_id", booking.GuestID,
			"nights", dr.Nights(),
			"total", booking.Price.Total.String())
	}
	result := dto.MapBooking(booking)
	return &result, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
