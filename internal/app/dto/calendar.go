package dto

import (
	"time"

	"staykeeper/internal/domain/availability"
)

type CalendarBlock struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Reason string    `json:"reason"`
}

type Calendar struct {
	ListingID  string          `json:"listing_id"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Blocks     []CalendarBlock `json:"blocks"`
	FreeNights int             `json:"free_nights"`
}

type Availability struct {
	ListingID string    `json:"listing_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Nights    int       `json:"nights"`
	Available bool      `json:"available"`
}

func MapCalendar(cal availability.Calendar) Calendar {
	blocks := make([]CalendarBlock, 0, len(cal.Blocks))
	for _, b := range cal.Blocks {
		blocks = append(blocks, CalendarBlock{
			From:   b.Range.CheckIn,
			To:     b.Range.CheckOut,
			Reason: string(b.Reason),
		})
	}
	return Calendar{
		ListingID:  string(cal.ListingID),
		From:       cal.Window.CheckIn,
		To:         cal.Window.CheckOut,
		Blocks:     blocks,
		FreeNights: len(cal.FreeNights()),
	}
}
