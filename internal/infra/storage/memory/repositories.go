package memory

import (
	"context"
	"sort"
	"time"

	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	domainuser "staykeeper/internal/domain/user"
)

// Repositories below are views bound to a unit; they copy aggregates on the
// way in and out so callers never share memory with the store.

type listingRepository struct {
	unit *Unit
}

func (r listingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	listing, ok := r.unit.data().listings[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return &listing, nil
}

func (r listingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if err := r.unit.writable(ctx); err != nil {
		return err
	}
	if err := listing.Validate(); err != nil {
		return err
	}
	r.unit.data().listings[listing.ID] = *listing
	return nil
}

type userRepository struct {
	unit *Unit
}

func (r userRepository) UserType(ctx context.Context, id domainuser.ID) (domainuser.Type, error) {
	if err := r.unit.check(ctx); err != nil {
		return "", err
	}
	u, ok := r.unit.data().users[id]
	if !ok {
		return "", domainuser.ErrNotFound
	}
	return u.Type, nil
}

func (r userRepository) Save(ctx context.Context, u *domainuser.User) error {
	if err := r.unit.writable(ctx); err != nil {
		return err
	}
	if _, err := domainuser.ParseType(string(u.Type)); err != nil {
		return err
	}
	r.unit.data().users[u.ID] = *u
	return nil
}

type bookingRepository struct {
	unit *Unit
}

func (r bookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	b, ok := r.unit.data().bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

// Save applies the optimistic version check used by the document store: the
// stored version must equal the one the caller loaded.
func (r bookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.unit.writable(ctx); err != nil {
		return err
	}
	if current, ok := r.unit.data().bookings[b.ID]; ok && current.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.unit.data().bookings[b.ID] = b.Clone()
	return nil
}

// LockListing is a no-op: the unit already holds the store-wide lock.
func (r bookingRepository) LockListing(ctx context.Context, _ domainlistings.ListingID) error {
	return r.unit.check(ctx)
}

func (r bookingRepository) Occupying(ctx context.Context, id domainlistings.ListingID, dr daterange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	var out []*domainbooking.Booking
	for _, b := range r.unit.data().bookings {
		if b.ListingID != id || b.ID == exclude || !b.Occupies() || !b.Range.Overlaps(dr) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckIn.Before(out[j].Range.CheckIn) })
	return out, nil
}

func (r bookingRepository) ListByGuest(ctx context.Context, guestID domainuser.ID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(ctx, filter, func(b *domainbooking.Booking) bool { return b.GuestID == guestID })
}

func (r bookingRepository) ListByHost(ctx context.Context, hostID domainlistings.HostID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(ctx, filter, func(b *domainbooking.Booking) bool { return b.HostID == hostID })
}

func (r bookingRepository) ListByListing(ctx context.Context, id domainlistings.ListingID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	var out []*domainbooking.Booking
	for _, b := range r.unit.data().bookings {
		if b.ListingID != id || (filter.Status != "" && b.State.Status() != filter.Status) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.After(out[j].Range.CheckIn)
	})
	return clones(page(out, filter.Offset, filter.Limit)), nil
}

func (r bookingRepository) Upcoming(ctx context.Context, hostID domainlistings.HostID, from time.Time, limit int) ([]*domainbooking.Booking, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	var out []*domainbooking.Booking
	for _, b := range r.unit.data().bookings {
		if b.HostID != hostID || b.State.Status() != domainbooking.StatusConfirmed || b.Range.CheckIn.Before(from) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return clones(page(out, 0, limit)), nil
}

func (r bookingRepository) ListingTotals(ctx context.Context, id domainlistings.ListingID, currency string) (domainbooking.ListingTotals, error) {
	var totals domainbooking.ListingTotals
	if err := r.unit.check(ctx); err != nil {
		return totals, err
	}
	for _, b := range r.unit.data().bookings {
		if b.ListingID == id {
			totals.Add(b, currency)
		}
	}
	return totals, nil
}

func (r bookingRepository) list(ctx context.Context, filter domainbooking.ListFilter, match func(*domainbooking.Booking) bool) ([]*domainbooking.Booking, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	var out []*domainbooking.Booking
	for _, b := range r.unit.data().bookings {
		if !match(b) {
			continue
		}
		if filter.Status != "" && b.State.Status() != filter.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return clones(page(out, filter.Offset, filter.Limit)), nil
}

func clones(items []*domainbooking.Booking) []*domainbooking.Booking {
	out := make([]*domainbooking.Booking, len(items))
	for i, b := range items {
		out[i] = b.Clone()
	}
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type commissionRepository struct {
	unit *Unit
}

func (r commissionRepository) ByID(ctx context.Context, id domaincommission.ID) (*domaincommission.Transaction, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	tx, ok := r.unit.data().commissions[id]
	if !ok {
		return nil, domaincommission.ErrNotFound
	}
	return tx.Clone(), nil
}

func (r commissionRepository) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domaincommission.Transaction, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	for _, tx := range r.unit.data().commissions {
		if tx.BookingID == bookingID {
			return tx.Clone(), nil
		}
	}
	return nil, domaincommission.ErrNotFound
}

func (r commissionRepository) Insert(ctx context.Context, tx *domaincommission.Transaction) error {
	if err := r.unit.writable(ctx); err != nil {
		return err
	}
	for _, existing := range r.unit.data().commissions {
		if existing.BookingID == tx.BookingID || existing.ID == tx.ID || existing.Reference == tx.Reference {
			return domaincommission.ErrAlreadyExists
		}
	}
	tx.Version = 1
	r.unit.data().commissions[tx.ID] = tx.Clone()
	return nil
}

func (r commissionRepository) Save(ctx context.Context, tx *domaincommission.Transaction) error {
	if err := r.unit.writable(ctx); err != nil {
		return err
	}
	current, ok := r.unit.data().commissions[tx.ID]
	if !ok {
		return domaincommission.ErrNotFound
	}
	if current.Version != tx.Version {
		return domaincommission.ErrConcurrentUpdate
	}
	tx.Version++
	r.unit.data().commissions[tx.ID] = tx.Clone()
	return nil
}

func (r commissionRepository) ListByHost(ctx context.Context, hostID domainlistings.HostID, status domaincommission.Status) ([]*domaincommission.Transaction, error) {
	if err := r.unit.check(ctx); err != nil {
		return nil, err
	}
	var out []*domaincommission.Transaction
	for _, tx := range r.unit.data().commissions {
		if tx.HostID != hostID || (status != "" && tx.Status != status) {
			continue
		}
		out = append(out, tx.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r commissionRepository) Totals(ctx context.Context, filter domaincommission.TotalsFilter) (domaincommission.Totals, error) {
	var totals domaincommission.Totals
	if err := r.unit.check(ctx); err != nil {
		return totals, err
	}
	for _, tx := range r.unit.data().commissions {
		if filter.Matches(tx) {
			totals.Add(tx)
		}
	}
	return totals, nil
}
