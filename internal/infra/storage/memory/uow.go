package memory

import (
	"context"

	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/errs"
	domainuser "staykeeper/internal/domain/user"
)

// Store keeps every aggregate of the engine in process memory. Units of work
// are fully serialized: Begin takes the store-wide lock and the unit holds it
// until Commit or Rollback, so a read-then-write inside one unit never races
// with another.
type Store struct {
	sem  chan struct{}
	data *state
}

type state struct {
	listings    map[domainlistings.ListingID]domainlistings.Listing
	users       map[domainuser.ID]domainuser.User
	bookings    map[domainbooking.BookingID]*domainbooking.Booking
	commissions map[domaincommission.ID]*domaincommission.Transaction
	outbox      []outboxEntry
}

func NewStore() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		data: &state{
			listings:    make(map[domainlistings.ListingID]domainlistings.Listing),
			users:       make(map[domainuser.ID]domainuser.User),
			bookings:    make(map[domainbooking.BookingID]*domainbooking.Booking),
			commissions: make(map[domaincommission.ID]*domaincommission.Transaction),
		},
	}
}

func (s *state) clone() *state {
	c := &state{
		listings:    make(map[domainlistings.ListingID]domainlistings.Listing, len(s.listings)),
		users:       make(map[domainuser.ID]domainuser.User, len(s.users)),
		bookings:    make(map[domainbooking.BookingID]*domainbooking.Booking, len(s.bookings)),
		commissions: make(map[domaincommission.ID]*domaincommission.Transaction, len(s.commissions)),
		outbox:      append([]outboxEntry(nil), s.outbox...),
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v.Clone()
	}
	for k, v := range s.commissions {
		c.commissions[k] = v.Clone()
	}
	return c
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.ErrUnavailable, "memory: store busy", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.sem
}

// Begin implements uow.UoWFactory.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	unit := &Unit{store: s, readOnly: opts.ReadOnly}
	if !opts.ReadOnly {
		unit.snapshot = s.data.clone()
	}
	return unit, nil
}

// Unit is a uow.UnitOfWork holding the store lock.
type Unit struct {
	store    *Store
	snapshot *state
	readOnly bool
	done     bool
}

type unitKey struct{}

// InjectContext lets store components that are not reached through the unit
// (the outbox) detect that the lock is already held.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitKey{}, u)
}

// activeUnit returns the open unit of s carried by ctx, if any.
func (s *Store) activeUnit(ctx context.Context) (*Unit, bool) {
	active, ok := ctx.Value(unitKey{}).(*Unit)
	if !ok || active.store != s || active.done {
		return nil, false
	}
	return active, true
}

// within runs fn against the store data, joining the unit in ctx or taking
// the lock for the duration of the call.
func (s *Store) within(ctx context.Context, fn func(*state) error) error {
	if _, ok := s.activeUnit(ctx); ok {
		return fn(s.data)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(s.data)
}

func (u *Unit) Listings() domainlistings.Repository {
	return listingRepository{unit: u}
}

func (u *Unit) Users() domainuser.Repository {
	return userRepository{unit: u}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return bookingRepository{unit: u}
}

func (u *Unit) Commissions() domaincommission.Repository {
	return commissionRepository{unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		_ = u.Rollback(ctx)
		return errs.FromContext(err)
	}
	u.done = true
	u.store.release()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.snapshot != nil {
		u.store.data = u.snapshot
	}
	u.store.release()
	return nil
}

func (u *Unit) data() *state {
	return u.store.data
}

// check guards every repository call.
func (u *Unit) check(ctx context.Context) error {
	if u.done {
		return errUnitClosed
	}
	return errs.FromContext(ctx.Err())
}

func (u *Unit) writable(ctx context.Context) error {
	if err := u.check(ctx); err != nil {
		return err
	}
	if u.readOnly {
		return errReadOnly
	}
	return nil
}

var (
	errUnitClosed = errs.Unavailable("memory: unit of work already finished")
	errReadOnly   = errs.Validation("memory: write attempted in read-only unit of work")
)

var _ uow.UoWFactory = (*Store)(nil)
var _ uow.UnitOfWork = (*Unit)(nil)
