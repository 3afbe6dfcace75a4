package relational

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	"staykeeper/internal/app/engine"
	bookingapp "staykeeper/internal/app/handlers/booking"
	commissionapp "staykeeper/internal/app/handlers/commission"
	"staykeeper/internal/app/middleware"
	appoutbox "staykeeper/internal/app/outbox"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

var dbSeq int

func testDB(t *testing.T) *DB {
	t.Helper()
	dbSeq++
	db, err := Connect(fmt.Sprintf("file:staykeeper_%d?mode=memory&cache=shared", dbSeq), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	err = uow.Run(context.Background(), Factory{DB: db}, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Listings().Save(ctx, &listings.Listing{
			ID:                 "listing-1",
			Host:               "host-1",
			Title:              "Loft",
			NightlyRate:        money.Must(10000, "USD"),
			CleaningFee:        money.Must(2000, "USD"),
			MaxGuests:          4,
			CancellationPolicy: listings.PolicyModerate,
			Published:          true,
		}); err != nil {
			return err
		}
		for _, u := range []user.User{
			{ID: "host-1", Type: user.TypeHost},
			{ID: "guest-1", Type: user.TypeGuest},
			{ID: "guest-2", Type: user.TypeBoth},
		} {
			u := u
			if err := unit.Users().Save(ctx, &u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return db
}

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func newEngine(db *DB, box *OutboxStore) *engine.Engine {
	return engine.New(engine.Dependencies{
		UoW:         Factory{DB: db},
		Outbox:      box,
		Idempotency: NewIdempotencyStore(db, time.Hour),
		Clock:       clock.NewFixed(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)),
	})
}

func createBooking(eng *engine.Engine, guest string, from, to int) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), eng.Commands, bookingapp.CreateBookingCommand{
		GuestID:   guest,
		ListingID: "listing-1",
		CheckIn:   day(from),
		CheckOut:  day(to),
		Guests:    2,
	})
}

func TestLookupsMapMissingRowsToNotFound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := NewListingRepository(db.Gorm).ByID(ctx, "nope")
	assert.ErrorIs(t, err, listings.ErrListingNotFound)
	_, err = NewUserRepository(db.Gorm).UserType(ctx, "nope")
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = NewBookingRepository(db.Gorm).ByID(ctx, "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = NewCommissionRepository(db.Gorm).ByBooking(ctx, "nope")
	assert.ErrorIs(t, err, domaincommission.ErrNotFound)

	typ, err := NewUserRepository(db.Gorm).UserType(ctx, "guest-2")
	require.NoError(t, err)
	assert.Equal(t, user.TypeBoth, typ)
}

func TestBookingRowRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewBookingRepository(db.Gorm)

	b := &domainbooking.Booking{
		ID:            "b-1",
		ListingID:     "listing-1",
		GuestID:       "guest-1",
		HostID:        "host-1",
		Range:         daterange.DateRange{CheckIn: day(10), CheckOut: day(13)},
		Guests:        2,
		Policy:        listings.PolicyModerate,
		State:         domainbooking.StateCancelledConfirmed,
		PaymentStatus: domainbooking.PaymentRefunded,
		HostResponse:  &domainbooking.HostResponse{Message: "welcome", At: day(2)},
		Cancellation: &domainbooking.Cancellation{
			By:     domainbooking.PartyGuest,
			Reason: "plans changed",
			Refund: money.Must(16450, "USD"),
			At:     day(7),
		},
		CreatedAt: day(1),
		UpdatedAt: day(7),
	}
	b.Price.Total = money.Must(32900, "USD")
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	got, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateCancelledConfirmed, got.State)
	assert.True(t, got.Range.CheckIn.Equal(day(10)))
	assert.Equal(t, "welcome", got.HostResponse.Message)
	assert.Equal(t, int64(16450), got.Cancellation.Refund.Amount)
	assert.Equal(t, "USD", got.Cancellation.Refund.Currency)

	stale := got.Clone()
	got.PaymentStatus = domainbooking.PaymentCompleted
	require.NoError(t, repo.Save(ctx, got))
	assert.ErrorIs(t, repo.Save(ctx, stale), domainbooking.ErrConcurrentUpdate)
}

func TestReportingQueriesOnSQLite(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	bookings := NewBookingRepository(db.Gorm)
	commissions := NewCommissionRepository(db.Gorm)

	stays := []struct {
		id       string
		from, to int
		state    domainbooking.State
		total    money.Money
	}{
		{"b-1", 10, 13, domainbooking.StateCompleted, money.Must(32900, "USD")},
		{"b-2", 20, 22, domainbooking.StateConfirmed, money.Must(22000, "USD")},
		{"b-3", 25, 27, domainbooking.StateAwaitingHost, money.Must(15000, "USD")},
		{"b-4", 3, 5, domainbooking.StateCancelledConfirmed, money.Must(10000, "USD")},
		{"b-5", 6, 8, domainbooking.StateCompleted, money.Must(5000, "EUR")},
	}
	for _, s := range stays {
		b := &domainbooking.Booking{
			ID:            domainbooking.BookingID(s.id),
			ListingID:     "listing-1",
			GuestID:       "guest-1",
			HostID:        "host-1",
			Range:         daterange.DateRange{CheckIn: day(s.from), CheckOut: day(s.to)},
			Guests:        2,
			Policy:        listings.PolicyModerate,
			State:         s.state,
			PaymentStatus: domainbooking.PaymentPending,
			CreatedAt:     day(1),
			UpdatedAt:     day(1),
		}
		b.Price.Total = s.total
		require.NoError(t, bookings.Save(ctx, b))
	}

	totals, err := bookings.ListingTotals(ctx, "listing-1", "USD")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.ListingTotals{Bookings: 5, Confirmed: 3, Completed: 1, Revenue: 32900}, totals)

	page, err := bookings.ListByListing(ctx, "listing-1", domainbooking.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domainbooking.BookingID("b-3"), page[0].ID)
	assert.Equal(t, domainbooking.BookingID("b-2"), page[1].ID)

	done, err := bookings.ListByListing(ctx, "listing-1", domainbooking.ListFilter{Status: domainbooking.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, done, 2)
	assert.Equal(t, domainbooking.BookingID("b-1"), done[0].ID)

	upcoming, err := bookings.Upcoming(ctx, "host-1", day(1), 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, domainbooking.BookingID("b-2"), upcoming[0].ID)
	upcoming, err = bookings.Upcoming(ctx, "host-1", day(21), 0)
	require.NoError(t, err)
	assert.Empty(t, upcoming)

	fees := []struct {
		booking string
		host    listings.HostID
		status  domaincommission.Status
		gross   int64
		created int
	}{
		{"b-1", "host-1", domaincommission.StatusCompleted, 32900, 1},
		{"b-4", "host-1", domaincommission.StatusCancelled, 10000, 2},
		{"b-2", "host-1", domaincommission.StatusPending, 22000, 3},
		{"b-3", "host-2", domaincommission.StatusProcessing, 15000, 4},
	}
	for _, f := range fees {
		split, err := domaincommission.Quote(money.Must(f.gross, "USD"), domaincommission.DefaultRate)
		require.NoError(t, err)
		require.NoError(t, commissions.Insert(ctx, &domaincommission.Transaction{
			ID:            domaincommission.ID("tx-" + f.booking),
			Reference:     "TXN-" + f.booking,
			BookingID:     domainbooking.BookingID(f.booking),
			HostID:        f.host,
			GuestID:       "guest-1",
			BookingAmount: split.Gross,
			Rate:          domaincommission.DefaultRate,
			Commission:    split.Commission,
			NetAmount:     split.Net,
			Status:        f.status,
			DueAt:         day(20),
			CreatedAt:     day(f.created),
			UpdatedAt:     day(f.created),
		}))
	}

	all, err := commissions.Totals(ctx, domaincommission.TotalsFilter{Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, domaincommission.Totals{
		Transactions: 3,
		Gross:        69900,
		Commission:   10485,
		Net:          59415,
		Collected:    4935,
		Pending:      5550,
		PaidOut:      27965,
	}, all)

	host, err := commissions.Totals(ctx, domaincommission.TotalsFilter{HostID: "host-1", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, 2, host.Transactions)
	assert.Equal(t, int64(3300), host.Pending)

	window, err := commissions.Totals(ctx, domaincommission.TotalsFilter{Currency: "USD", From: day(2), To: day(4)})
	require.NoError(t, err)
	assert.Equal(t, domaincommission.Totals{Transactions: 1, Gross: 22000, Commission: 3300, Net: 18700, Pending: 3300}, window)

	none, err := commissions.Totals(ctx, domaincommission.TotalsFilter{Currency: "EUR"})
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestEngineLifecycleOnSQLite(t *testing.T) {
	db := testDB(t)
	box := NewOutboxStore(db)
	eng := newEngine(db, box)
	ctx := context.Background()

	created, err := createBooking(eng, "guest-1", 10, 13)
	require.NoError(t, err)
	assert.Equal(t, int64(32900), created.Price.Total.Amount)

	_, err = commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingStatus](ctx, eng.Commands, bookingapp.ConfirmBookingCommand{
		BookingID: created.ID,
		HostID:    "host-1",
	})
	require.NoError(t, err)

	// relay the outbox into the commission listener
	for {
		rec, err := box.Claim(ctx, "test")
		require.NoError(t, err)
		if rec == nil {
			break
		}
		require.NoError(t, eng.BookingConfirmed.HandleEvent(ctx, rec.Name+".v1", rec.Payload))
		require.NoError(t, box.MarkSent(ctx, rec.ID))
	}

	listed, err := queries.Ask[commissionapp.ListHostCommissionsQuery, dto.CommissionCollection](ctx, eng.Queries, commissionapp.ListHostCommissionsQuery{HostID: "host-1"})
	require.NoError(t, err)
	require.Len(t, listed.Items, 1)
	assert.Equal(t, int64(4935), listed.Items[0].Commission.Amount)
	assert.Equal(t, "15", listed.Items[0].Rate)

	_, err = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, eng.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, ActorIDV: "host-1"})
	assert.ErrorIs(t, err, domaincommission.ErrAlreadyExists)

	paid, err := commands.Dispatch[commissionapp.PayCommissionCommand, *dto.Commission](ctx, eng.Commands, commissionapp.PayCommissionCommand{
		TransactionID: listed.Items[0].ID,
		HostID:        "host-1",
		Method:        "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", paid.Status)
}

func TestParallelCreatesOnSQLite(t *testing.T) {
	db := testDB(t)
	eng := newEngine(db, NewOutboxStore(db))
	const n = 6

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = createBooking(eng, "guest-1", 10, 13)
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
	}
	assert.Equal(t, 1, succeeded)
}

func TestParallelCommissionCreatesOnSQLite(t *testing.T) {
	db := testDB(t)
	eng := newEngine(db, NewOutboxStore(db))
	ctx := context.Background()

	created, err := createBooking(eng, "guest-1", 10, 13)
	require.NoError(t, err)
	_, err = commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingStatus](ctx, eng.Commands, bookingapp.ConfirmBookingCommand{
		BookingID: created.ID,
		HostID:    "host-1",
	})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = commands.Dispatch[commissionapp.CreateCommissionCommand, *dto.Commission](ctx, eng.Commands, commissionapp.CreateCommissionCommand{BookingID: created.ID, ActorIDV: "host-1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errs.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	var rows int64
	require.NoError(t, db.Gorm.Table("commissions").Where("booking_id = ?", created.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestRolledBackUnitDropsOutboxRecords(t *testing.T) {
	db := testDB(t)
	box := NewOutboxStore(db)
	ctx := context.Background()

	err := uow.Run(ctx, Factory{DB: db}, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "ev-1", Name: "booking.created", Payload: []byte(`{}`), Aggregate: "b-1"}))
		return errs.Conflict("abort")
	})
	require.Error(t, err)

	rec, err := box.Claim(ctx, "test")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestOutboxRetriesAfterBackoff(t *testing.T) {
	db := testDB(t)
	box := NewOutboxStore(db)
	ctx := context.Background()

	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{
		ID:        "ev-1",
		Name:      "booking.confirmed",
		Payload:   []byte(`{"booking_id":"b-1"}`),
		Aggregate: "b-1",
		Headers:   map[string]string{"traceparent": "00-abc"},
	}))

	rec, err := box.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "00-abc", rec.Headers["traceparent"])
	assert.Equal(t, 0, rec.Attempts)

	again, err := box.Claim(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, again, "claimed records are not handed out twice")

	require.NoError(t, box.MarkFailed(ctx, "ev-1", time.Now().Add(-time.Second), "broker down"))
	retry, err := box.Claim(ctx, "w2")
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 1, retry.Attempts)

	require.NoError(t, box.MarkSent(ctx, "ev-1"))
	done, err := box.Claim(ctx, "w3")
	require.NoError(t, err)
	assert.Nil(t, done)
}

func TestIdempotencyAndInboxStores(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	idem := NewIdempotencyStore(db, time.Hour)
	require.NoError(t, idem.Save(ctx, middleware.IdempotencyRecord{
		Key:        "booking.create:k1",
		Error:      "booking: listing unavailable for selected dates",
		ErrorKind:  errs.ErrConflict.Error(),
		OccurredAt: time.Now(),
	}))
	rec, found, err := idem.Get(ctx, "booking.create:k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, errs.ErrConflict.Error(), rec.ErrorKind)

	inbox := NewInboxStore(db, "commission")
	seen, err := inbox.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = inbox.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen, "checking does not mark")

	require.NoError(t, inbox.Mark(ctx, "ev-1"))
	require.NoError(t, inbox.Mark(ctx, "ev-1"))
	seen, err = inbox.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = NewInboxStore(db, "other").Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
