package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	availabilityapp "staykeeper/internal/app/handlers/availability"
	bookingapp "staykeeper/internal/app/handlers/booking"
	commissionapp "staykeeper/internal/app/handlers/commission"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
	domainuser "staykeeper/internal/domain/user"
	"staykeeper/internal/infra/storage/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store  *memory.Store
	box    *memory.Outbox
	clock  *testClock
	engine *Engine
}

func newFixture(t *testing.T, txTimeout time.Duration) *fixture {
	t.Helper()
	store := memory.NewStore()
	box := memory.NewOutbox(store)
	clk := &testClock{now: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)}

	err := uow.Run(context.Background(), store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing := &domainlistings.Listing{
			ID:                 "listing-1",
			Host:               "host-1",
			Title:              "Loft",
			NightlyRate:        money.Must(10000, "USD"),
			CleaningFee:        money.Must(2000, "USD"),
			MaxGuests:          4,
			CancellationPolicy: domainlistings.PolicyModerate,
			Published:          true,
		}
		if err := unit.Listings().Save(ctx, listing); err != nil {
			return err
		}
		for _, u := range []domainuser.User{
			{ID: "host-1", Type: domainuser.TypeHost},
			{ID: "guest-1", Type: domainuser.TypeGuest},
			{ID: "guest-2", Type: domainuser.TypeBoth},
		} {
			u := u
			if err := unit.Users().Save(ctx, &u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	discounts := memory.NewDiscountTable()
	eng := New(Dependencies{
		UoW:         store,
		Outbox:      box,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Discounts:   discounts,
		Clock:       clk,
		TxTimeout:   txTimeout,
	})
	return &fixture{store: store, box: box, clock: clk, engine: eng}
}

func (f *fixture) create(t *testing.T, guest string, checkIn, checkOut time.Time) (*dto.Booking, error) {
	t.Helper()
	return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), f.engine.Commands, bookingapp.CreateBookingCommand{
		GuestID:   guest,
		ListingID: "listing-1",
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Guests:    2,
	})
}

func (f *fixture) confirm(t *testing.T, id string) (*dto.BookingStatus, error) {
	t.Helper()
	return commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingStatus](context.Background(), f.engine.Commands, bookingapp.ConfirmBookingCommand{
		BookingID: id,
		HostID:    "host-1",
	})
}

// deliver replays every pending outbox record to the commission listener, the
// way the broker consumer would.
func (f *fixture) deliver(t *testing.T) {
	t.Helper()
	records, err := f.box.Pending(context.Background())
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, f.engine.BookingConfirmed.HandleEvent(context.Background(), rec.Name+".v1", rec.Payload))
	}
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	created, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusPending), created.Status)
	assert.Equal(t, int64(32900), created.Price.Total.Amount)
	assert.Equal(t, "host-1", created.HostID)

	status, err := f.confirm(t, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), status.Status)

	f.deliver(t)
	listed, err := queries.Ask[commissionapp.ListHostCommissionsQuery, dto.CommissionCollection](ctx, f.engine.Queries, commissionapp.ListHostCommissionsQuery{HostID: "host-1"})
	require.NoError(t, err)
	require.Len(t, listed.Items, 1)
	commission := listed.Items[0]
	assert.Equal(t, created.ID, commission.BookingID)
	assert.Equal(t, int64(4935), commission.Commission.Amount)
	assert.Equal(t, int64(27965), commission.NetAmount.Amount)
	assert.Regexp(t, `^TXN-20260701-[0-9A-F]{12}$`, commission.Reference)

	pending, err := queries.Ask[commissionapp.PendingCommissionsQuery, dto.PendingCommissions](ctx, f.engine.Queries, commissionapp.PendingCommissionsQuery{HostID: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Count)
	assert.Equal(t, int64(4935), pending.Total.Amount)

	paid, err := commands.Dispatch[commissionapp.PayCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.PayCommissionCommand{
		TransactionID: commission.ID,
		HostID:        "host-1",
		Method:        "card",
		Provider:      "stripe",
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", paid.Status)
	require.NotNil(t, paid.CompletedAt)

	f.clock.Set(day(10).Add(15 * time.Hour))
	checkedIn, err := commands.Dispatch[bookingapp.CheckInCommand, *dto.BookingStatus](ctx, f.engine.Commands, bookingapp.CheckInCommand{BookingID: created.ID, ActorIDV: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StageCheckedIn), checkedIn.Stage)

	f.clock.Set(day(13).Add(10 * time.Hour))
	checkedOut, err := commands.Dispatch[bookingapp.CheckOutCommand, *dto.BookingStatus](ctx, f.engine.Commands, bookingapp.CheckOutCommand{BookingID: created.ID, ActorIDV: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCompleted), checkedOut.Status)

	got, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](ctx, f.engine.Queries, bookingapp.GetBookingQuery{BookingID: created.ID, ActorIDV: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StageCheckedOut), got.Stage)

	_, err = queries.Ask[bookingapp.GetBookingQuery, dto.Booking](ctx, f.engine.Queries, bookingapp.GetBookingQuery{BookingID: created.ID, ActorIDV: "guest-2"})
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestParallelCreatesForSameDatesLetOneWin(t *testing.T) {
	f := newFixture(t, 0)
	const n = 8

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.create(t, "guest-1", day(10), day(13))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainbooking.ErrUnavailable)
		assert.ErrorIs(t, err, errs.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	list, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](context.Background(), f.engine.Queries, bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestConfirmRefusedWhenDatesWereTaken(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	created, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)

	// a sibling that slipped in through another channel
	err = uow.Run(ctx, f.store, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Save(ctx, &domainbooking.Booking{
			ID:        "sibling",
			ListingID: "listing-1",
			GuestID:   "guest-2",
			HostID:    "host-1",
			Range:     daterange.DateRange{CheckIn: day(12), CheckOut: day(15)},
			Guests:    1,
			State:     domainbooking.StateConfirmed,
			CreatedAt: day(1),
		})
	})
	require.NoError(t, err)

	_, err = f.confirm(t, created.ID)
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)

	got, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](ctx, f.engine.Queries, bookingapp.GetBookingQuery{BookingID: created.ID, ActorIDV: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusPending), got.Status)
}

func TestDuplicateCommissionIsConflict(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	created, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	_, err = f.confirm(t, created.ID)
	require.NoError(t, err)

	first, err := commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, ActorIDV: "host-1"})
	require.NoError(t, err)

	_, err = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, InternalCall: true})
	assert.ErrorIs(t, err, errs.ErrConflict)

	// a redelivered confirmation is absorbed
	f.deliver(t)
	f.deliver(t)

	listed, err := queries.Ask[commissionapp.ListHostCommissionsQuery, dto.CommissionCollection](ctx, f.engine.Queries, commissionapp.ListHostCommissionsQuery{HostID: "host-1"})
	require.NoError(t, err)
	require.Len(t, listed.Items, 1)
	assert.Equal(t, first.ID, listed.Items[0].ID)
}

func TestParallelCommissionCreatesLetOneWin(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	created, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	_, err = f.confirm(t, created.ID)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, ActorIDV: "host-1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domaincommission.ErrAlreadyExists)
		assert.ErrorIs(t, err, errs.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	listed, err := queries.Ask[commissionapp.ListHostCommissionsQuery, dto.CommissionCollection](ctx, f.engine.Queries, commissionapp.ListHostCommissionsQuery{HostID: "host-1"})
	require.NoError(t, err)
	assert.Len(t, listed.Items, 1)
}

func TestCommissionAuthorization(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	created, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)

	_, err = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID})
	assert.ErrorIs(t, err, errs.ErrForbidden, "no actor and not internal")

	_, err = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, InternalCall: true})
	assert.ErrorIs(t, err, errs.ErrValidation, "booking still pending")

	_, err = f.confirm(t, created.ID)
	require.NoError(t, err)
	_, err = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, ActorIDV: "guest-1"})
	assert.ErrorIs(t, err, commissionapp.ErrNotBookingHost)

	tx, err := commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, InternalCall: true})
	require.NoError(t, err)

	_, err = commands.Dispatch[commissionapp.PayCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.PayCommissionCommand{TransactionID: tx.ID, HostID: "guest-1", Method: "card"})
	assert.ErrorIs(t, err, commissionapp.ErrHostAccountRequired)

	_, err = queries.Ask[commissionapp.ListHostCommissionsQuery, dto.CommissionCollection](ctx, f.engine.Queries, commissionapp.ListHostCommissionsQuery{HostID: "guest-1"})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	got, err := queries.Ask[commissionapp.GetCommissionQuery, dto.Commission](ctx, f.engine.Queries, commissionapp.GetCommissionQuery{TransactionID: tx.ID, ActorIDV: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, tx.Reference, got.Reference)

	_, err = queries.Ask[commissionapp.GetCommissionQuery, dto.Commission](ctx, f.engine.Queries, commissionapp.GetCommissionQuery{TransactionID: tx.ID, ActorIDV: "guest-2"})
	assert.ErrorIs(t, err, commissionapp.ErrNotTransactionParty)
}

func TestCommissionTransitions(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	created, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	_, err = f.confirm(t, created.ID)
	require.NoError(t, err)
	tx, err := commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, InternalCall: true})
	require.NoError(t, err)

	_, err = commands.Dispatch[commissionapp.TransitionCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.TransitionCommissionCommand{TransactionID: tx.ID, Action: "archive"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	processing, err := commands.Dispatch[commissionapp.TransitionCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.TransitionCommissionCommand{TransactionID: tx.ID, Action: commissionapp.ActionProcessing})
	require.NoError(t, err)
	assert.Equal(t, "processing", processing.Status)

	failed, err := commands.Dispatch[commissionapp.FailCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.FailCommissionCommand{TransactionID: tx.ID, Reason: "card declined"})
	require.NoError(t, err)
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, "card declined", failed.FailureReason)

	_, err = commands.Dispatch[commissionapp.TransitionCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.TransitionCommissionCommand{TransactionID: tx.ID, Action: commissionapp.ActionRefund})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestHostReportsFollowTheLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	second, err := f.create(t, "guest-2", day(20), day(22))
	require.NoError(t, err)
	third, err := f.create(t, "guest-1", day(25), day(27))
	require.NoError(t, err)
	var fees []*dto.Commission
	for _, id := range []string{first.ID, second.ID} {
		_, err := f.confirm(t, id)
		require.NoError(t, err)
		tx, err := commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.CreateCommissionCommand{BookingID: id, InternalCall: true})
		require.NoError(t, err)
		fees = append(fees, tx)
	}
	_, err = commands.Dispatch[commissionapp.PayCommissionCommand, *dto.Commission](ctx, f.engine.Commands, commissionapp.PayCommissionCommand{
		TransactionID: fees[0].ID,
		HostID:        "host-1",
		Method:        "card",
	})
	require.NoError(t, err)

	listed, err := queries.Ask[bookingapp.ListListingBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.ListListingBookingsQuery{HostID: "host-1", ListingID: "listing-1"})
	require.NoError(t, err)
	require.Len(t, listed.Items, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{listed.Items[0].ID, listed.Items[1].ID, listed.Items[2].ID})

	confirmed, err := queries.Ask[bookingapp.ListListingBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.ListListingBookingsQuery{HostID: "host-1", ListingID: "listing-1", Status: "confirmed", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, confirmed.Items, 1)
	assert.Equal(t, first.ID, confirmed.Items[0].ID)

	_, err = queries.Ask[bookingapp.ListListingBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.ListListingBookingsQuery{HostID: "guest-2", ListingID: "listing-1"})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	upcoming, err := queries.Ask[bookingapp.UpcomingBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.UpcomingBookingsQuery{HostID: "host-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, upcoming.Items, 1)
	assert.Equal(t, first.ID, upcoming.Items[0].ID)

	stats, err := queries.Ask[bookingapp.ListingStatsQuery, dto.ListingStats](ctx, f.engine.Queries, bookingapp.ListingStatsQuery{HostID: "host-1", ListingID: "listing-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBookings)
	assert.Equal(t, 2, stats.ConfirmedBookings)
	assert.Equal(t, 5, stats.BookedNights)
	assert.Equal(t, "16.67", stats.OccupancyRate)
	assert.Equal(t, day(1), stats.WindowStart)
	assert.Zero(t, stats.TotalRevenue.Amount)

	f.clock.Set(day(10).Add(15 * time.Hour))
	_, err = commands.Dispatch[bookingapp.CheckInCommand, *dto.BookingStatus](ctx, f.engine.Commands, bookingapp.CheckInCommand{BookingID: first.ID, ActorIDV: "guest-1"})
	require.NoError(t, err)
	f.clock.Set(day(13).Add(10 * time.Hour))
	_, err = commands.Dispatch[bookingapp.CheckOutCommand, *dto.BookingStatus](ctx, f.engine.Commands, bookingapp.CheckOutCommand{BookingID: first.ID, ActorIDV: "host-1"})
	require.NoError(t, err)

	stats, err = queries.Ask[bookingapp.ListingStatsQuery, dto.ListingStats](ctx, f.engine.Queries, bookingapp.ListingStatsQuery{HostID: "host-1", ListingID: "listing-1", Days: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ConfirmedBookings)
	assert.Equal(t, 1, stats.CompletedBookings)
	assert.Equal(t, int64(32900), stats.TotalRevenue.Amount)
	assert.Equal(t, int64(32900), stats.AverageBookingValue.Amount)
	assert.Equal(t, 2, stats.BookedNights)
	assert.Equal(t, "20.00", stats.OccupancyRate)

	upcoming, err = queries.Ask[bookingapp.UpcomingBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.UpcomingBookingsQuery{HostID: "host-1"})
	require.NoError(t, err)
	require.Len(t, upcoming.Items, 1)
	assert.Equal(t, second.ID, upcoming.Items[0].ID)

	earnings, err := queries.Ask[commissionapp.HostEarningsQuery, dto.HostEarnings](ctx, f.engine.Queries, commissionapp.HostEarningsQuery{HostID: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, earnings.TotalBookings)
	assert.Equal(t, first.Price.Total.Amount+second.Price.Total.Amount, earnings.GrossEarnings.Amount)
	assert.Equal(t, fees[0].Commission.Amount+fees[1].Commission.Amount, earnings.CommissionCharged.Amount)
	assert.Equal(t, fees[1].Commission.Amount, earnings.PendingCommission.Amount)
	assert.Equal(t, fees[0].NetAmount.Amount, earnings.PayoutsReceived.Amount)
	assert.Equal(t, "USD", earnings.NetEarnings.Currency)
	assert.Equal(t, "15", earnings.CommissionRate)

	_, err = queries.Ask[commissionapp.HostEarningsQuery, dto.HostEarnings](ctx, f.engine.Queries, commissionapp.HostEarningsQuery{HostID: "guest-1"})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	revenue, err := queries.Ask[commissionapp.PlatformRevenueQuery, dto.PlatformRevenue](ctx, f.engine.Queries, commissionapp.PlatformRevenueQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, revenue.TotalTransactions)
	assert.Equal(t, fees[0].Commission.Amount, revenue.CommissionsCollected.Amount)
	assert.Equal(t, fees[1].Commission.Amount, revenue.CommissionsPending.Amount)

	later, err := queries.Ask[commissionapp.PlatformRevenueQuery, dto.PlatformRevenue](ctx, f.engine.Queries, commissionapp.PlatformRevenueQuery{From: day(2)})
	require.NoError(t, err)
	assert.Zero(t, later.TotalTransactions)

	_, err = queries.Ask[commissionapp.PlatformRevenueQuery, dto.PlatformRevenue](ctx, f.engine.Queries, commissionapp.PlatformRevenueQuery{From: day(5), To: day(4)})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCancelAndRejectReleaseDates(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first, err := f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	_, err = f.confirm(t, first.ID)
	require.NoError(t, err)

	f.clock.Set(day(4))
	cancelled, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.CancellationResult](ctx, f.engine.Commands, bookingapp.CancelBookingCommand{BookingID: first.ID, ActorIDV: "guest-1", Reason: "plans changed"})
	require.NoError(t, err)
	assert.Equal(t, "guest", cancelled.CancelledBy)
	assert.Equal(t, int64(32900), cancelled.Refund.Amount)
	assert.Equal(t, string(domainbooking.StatusCancelled), cancelled.Status)

	second, err := f.create(t, "guest-2", day(11), day(12))
	require.NoError(t, err)
	rejected, err := commands.Dispatch[bookingapp.RejectBookingCommand, *dto.BookingStatus](ctx, f.engine.Commands, bookingapp.RejectBookingCommand{BookingID: second.ID, HostID: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StageAwaitingHost), rejected.Stage)

	avail, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](ctx, f.engine.Queries, availabilityapp.GetAvailabilityQuery{ListingID: "listing-1", CheckIn: day(10), CheckOut: day(13)})
	require.NoError(t, err)
	assert.True(t, avail.Available)

	_, err = f.create(t, "guest-1", day(10), day(13))
	require.NoError(t, err)
	calendar, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](ctx, f.engine.Queries, availabilityapp.GetCalendarQuery{ListingID: "listing-1", From: day(1), To: day(20)})
	require.NoError(t, err)
	require.Len(t, calendar.Blocks, 1)
	assert.Equal(t, day(10), calendar.Blocks[0].From)
}

func TestIdempotentCreateReplaysResult(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cmd := bookingapp.CreateBookingCommand{
		GuestID:         "guest-1",
		ListingID:       "listing-1",
		CheckIn:         day(10),
		CheckOut:        day(13),
		Guests:          2,
		IdempotencyKeyV: "req-1",
	}

	first, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, f.engine.Commands, cmd)
	require.NoError(t, err)
	again, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, f.engine.Commands, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	list, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestIdempotencyKeyIsScopedToGuest(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	create := func(guest string, checkIn, checkOut time.Time) (*dto.Booking, error) {
		return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, f.engine.Commands, bookingapp.CreateBookingCommand{
			GuestID:         guest,
			ListingID:       "listing-1",
			CheckIn:         checkIn,
			CheckOut:        checkOut,
			Guests:          2,
			IdempotencyKeyV: "k1",
		})
	}

	first, err := create("guest-1", day(10), day(13))
	require.NoError(t, err)
	second, err := create("guest-2", day(20), day(22))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "guest-1", first.GuestID)
	assert.Equal(t, "guest-2", second.GuestID)

	mine, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.ListGuestBookingsQuery{GuestID: "guest-2"})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, second.ID, mine.Items[0].ID)
}

func TestValidationRunsBeforeHandlers(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, f.engine.Commands, bookingapp.CreateBookingCommand{
		GuestID: "guest-1", ListingID: "listing-1", CheckIn: day(10), CheckOut: day(13),
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.create(t, "guest-1", day(13), day(10))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.create(t, "host-1", day(10), day(13))
	assert.ErrorIs(t, err, domainbooking.ErrSelfBooking)

	_, err = queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](ctx, f.engine.Queries, bookingapp.ListGuestBookingsQuery{GuestID: "guest-1", Status: "archived"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestTransactionTimeoutIsUnavailable(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	held, err := f.store.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	defer func() { _ = held.Rollback(ctx) }()

	_, err = f.create(t, "guest-1", day(10), day(13))
	assert.ErrorIs(t, err, errs.ErrUnavailable)
	assert.True(t, errs.Retryable(err))
}
