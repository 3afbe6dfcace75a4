package dto

import "time"

type PricePreview struct {
	ListingID string         `json:"listing_id"`
	CheckIn   time.Time      `json:"check_in"`
	CheckOut  time.Time      `json:"check_out"`
	Price     PriceBreakdown `json:"price"`
}
