// Package engine registers every booking, availability and commission
// handler on the command and query buses and wraps them in the middleware
// chain.
package engine

import (
	"log/slog"
	"time"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/commands"
	availabilityapp "staykeeper/internal/app/handlers/availability"
	bookingapp "staykeeper/internal/app/handlers/booking"
	commissionapp "staykeeper/internal/app/handlers/commission"
	"staykeeper/internal/app/middleware"
	"staykeeper/internal/app/outbox"
	"staykeeper/internal/app/policies"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/app/uow"
	domaincommission "staykeeper/internal/domain/commission"
	"staykeeper/internal/domain/shared/money"
)

// DefaultTxTimeout bounds a command's unit of work when none is configured.
const DefaultTxTimeout = 5 * time.Second

type Dependencies struct {
	UoW         uow.UoWFactory
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Idempotency middleware.IdempotencyStore
	Discounts   policies.DiscountPort
	Clock       clock.Clock
	Logger      *slog.Logger

	CommissionRate     domaincommission.Rate
	CommissionDueAfter time.Duration
	DefaultCurrency    string
	TxTimeout          time.Duration
}

type Engine struct {
	Commands commands.Bus
	Queries  queries.Bus
	// BookingConfirmed turns booking.confirmed events into commission
	// transactions; the broker consumer feeds it.
	BookingConfirmed *commissionapp.BookingConfirmedListener
}

func New(deps Dependencies) *Engine {
	if deps.UoW == nil {
		panic("engine: unit of work factory required")
	}
	if deps.Encoder == nil {
		deps.Encoder = outbox.JSONEventEncoder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CommissionRate == (domaincommission.Rate{}) {
		deps.CommissionRate = domaincommission.DefaultRate
	}
	if deps.DefaultCurrency == "" {
		deps.DefaultCurrency = money.DefaultCurrency
	}
	timeout := deps.TxTimeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}

	commandBus := commands.NewInMemoryBus()
	registerBookingCommands(commandBus, deps)
	registerCommissionCommands(commandBus, deps)

	queryBus := queries.NewInMemoryBus()
	registerBookingQueries(queryBus, deps)
	registerAvailabilityQueries(queryBus, deps)
	registerCommissionQueries(queryBus, deps)

	validator := middleware.NewStructValidator()
	commandMiddleware := []middleware.CommandMiddleware{
		middleware.Validation(validator),
		middleware.Authorization(middleware.ActorAuthorizer{}),
	}
	if deps.Idempotency != nil {
		commandMiddleware = append(commandMiddleware, middleware.Idempotency(deps.Idempotency, nil))
	}
	if deps.Outbox != nil {
		// flushed only once the unit below has committed
		commandMiddleware = append(commandMiddleware, middleware.OutboxFlush(deps.Outbox, deps.Logger))
	}
	commandMiddleware = append(commandMiddleware, middleware.Transaction(deps.UoW, nil, timeout))

	commandsWithMiddleware := middleware.ChainCommands(commandBus, commandMiddleware...)
	queriesWithMiddleware := middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.ActorAuthorizer{}),
	)

	return &Engine{
		Commands: commandsWithMiddleware,
		Queries:  queriesWithMiddleware,
		BookingConfirmed: &commissionapp.BookingConfirmedListener{
			Commands: commandsWithMiddleware,
			Logger:   deps.Logger,
		},
	}
}

func registerBookingCommands(bus *commands.InMemoryBus, deps Dependencies) {
	commands.RegisterHandler(bus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		Discounts: deps.Discounts,
		Outbox:    deps.Outbox,
		Encoder:   deps.Encoder,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	})
	commands.RegisterHandler(bus, bookingapp.ConfirmBookingCommand{}.Key(), &bookingapp.ConfirmBookingHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, bookingapp.RejectBookingCommand{}.Key(), &bookingapp.RejectBookingHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, bookingapp.CheckInCommand{}.Key(), &bookingapp.CheckInHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, bookingapp.CheckOutCommand{}.Key(), &bookingapp.CheckOutHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, bookingapp.UpdatePaymentStatusCommand{}.Key(), &bookingapp.UpdatePaymentStatusHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
}

func registerCommissionCommands(bus *commands.InMemoryBus, deps Dependencies) {
	commands.RegisterHandler(bus, commissionapp.CreateCommissionCommand{}.Key(), &commissionapp.CreateCommissionHandler{
		Rate:     deps.CommissionRate,
		DueAfter: deps.CommissionDueAfter,
		Outbox:   deps.Outbox,
		Encoder:  deps.Encoder,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	})
	commands.RegisterHandler(bus, commissionapp.PayCommissionCommand{}.Key(), &commissionapp.PayCommissionHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, commissionapp.FailCommissionCommand{}.Key(), &commissionapp.FailCommissionHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
	commands.RegisterHandler(bus, commissionapp.TransitionCommissionCommand{}.Key(), &commissionapp.TransitionCommissionHandler{
		Outbox: deps.Outbox, Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger,
	})
}

func registerBookingQueries(bus *queries.InMemoryBus, deps Dependencies) {
	queries.RegisterHandler(bus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, bookingapp.ListHostBookingsQuery{}.Key(), &bookingapp.ListHostBookingsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, bookingapp.ListListingBookingsQuery{}.Key(), &bookingapp.ListListingBookingsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, bookingapp.ListingStatsQuery{}.Key(), &bookingapp.ListingStatsHandler{UoWFactory: deps.UoW, Clock: deps.Clock})
	queries.RegisterHandler(bus, bookingapp.UpcomingBookingsQuery{}.Key(), &bookingapp.UpcomingBookingsHandler{UoWFactory: deps.UoW, Clock: deps.Clock})
	queries.RegisterHandler(bus, bookingapp.PreviewPricingQuery{}.Key(), &bookingapp.PreviewPricingHandler{
		UoWFactory: deps.UoW,
		Discounts:  deps.Discounts,
	})
}

func registerAvailabilityQueries(bus *queries.InMemoryBus, deps Dependencies) {
	queries.RegisterHandler(bus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, availabilityapp.GetAvailabilityQuery{}.Key(), &availabilityapp.GetAvailabilityHandler{UoWFactory: deps.UoW})
}

func registerCommissionQueries(bus *queries.InMemoryBus, deps Dependencies) {
	queries.RegisterHandler(bus, commissionapp.PreviewCommissionQuery{}.Key(), &commissionapp.PreviewCommissionHandler{Rate: deps.CommissionRate})
	queries.RegisterHandler(bus, commissionapp.GetCommissionRateQuery{}.Key(), &commissionapp.GetCommissionRateHandler{Rate: deps.CommissionRate})
	queries.RegisterHandler(bus, commissionapp.GetCommissionQuery{}.Key(), &commissionapp.GetCommissionHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, commissionapp.ListHostCommissionsQuery{}.Key(), &commissionapp.ListHostCommissionsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(bus, commissionapp.PendingCommissionsQuery{}.Key(), &commissionapp.PendingCommissionsHandler{
		UoWFactory:      deps.UoW,
		DefaultCurrency: deps.DefaultCurrency,
	})
	queries.RegisterHandler(bus, commissionapp.HostEarningsQuery{}.Key(), &commissionapp.HostEarningsHandler{
		UoWFactory:      deps.UoW,
		Rate:            deps.CommissionRate,
		DefaultCurrency: deps.DefaultCurrency,
	})
	queries.RegisterHandler(bus, commissionapp.PlatformRevenueQuery{}.Key(), &commissionapp.PlatformRevenueHandler{
		UoWFactory:      deps.UoW,
		Rate:            deps.CommissionRate,
		DefaultCurrency: deps.DefaultCurrency,
	})
}
