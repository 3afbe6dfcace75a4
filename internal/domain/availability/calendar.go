package availability

import (
	"sort"
	"time"

	"staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
)

type BlockReason string

const (
	ReasonPending   BlockReason = "pending"
	ReasonConfirmed BlockReason = "confirmed"
)

// Block is a span of nights that cannot be booked.
type Block struct {
	Range     daterange.DateRange
	Reason    BlockReason
	Reference string
}

// Calendar is the occupied view of a listing inside a window.
type Calendar struct {
	ListingID listings.ListingID
	Window    daterange.DateRange
	Blocks    []Block
}

// NewCalendar clips occupying bookings to window, ordered by check-in.
func NewCalendar(id listings.ListingID, window daterange.DateRange, bookings []*booking.Booking) Calendar {
	cal := Calendar{ListingID: id, Window: window}
	for _, b := range bookings {
		if !b.Occupies() {
			continue
		}
		clipped, ok := b.Range.Clip(window)
		if !ok {
			continue
		}
		reason := ReasonPending
		if b.State.Status() == booking.StatusConfirmed {
			reason = ReasonConfirmed
		}
		cal.Blocks = append(cal.Blocks, Block{Range: clipped, Reason: reason, Reference: string(b.ID)})
	}
	sort.Slice(cal.Blocks, func(i, j int) bool {
		return cal.Blocks[i].Range.CheckIn.Before(cal.Blocks[j].Range.CheckIn)
	})
	return cal
}

// CanReserve reports whether r is free of every block.
func (c Calendar) CanReserve(r daterange.DateRange) bool {
	for _, block := range c.Blocks {
		if block.Range.Overlaps(r) {
			return false
		}
	}
	return true
}

// Occupied merges touching blocks into continuous spans.
func (c Calendar) Occupied() []daterange.DateRange {
	var out []daterange.DateRange
	for _, block := range c.Blocks {
		if n := len(out); n > 0 {
			if merged, ok := out[n-1].Merge(block.Range); ok {
				out[n-1] = merged
				continue
			}
		}
		out = append(out, block.Range)
	}
	return out
}

// FreeNights lists the dates inside the window that are still bookable.
func (c Calendar) FreeNights() []time.Time {
	var out []time.Time
	for d := c.Window.CheckIn; d.Before(c.Window.CheckOut); d = d.AddDate(0, 0, 1) {
		free := true
		for _, block := range c.Blocks {
			if block.Range.ContainsDate(d) {
				free = false
				break
			}
		}
		if free {
			out = append(out, d)
		}
	}
	return out
}
