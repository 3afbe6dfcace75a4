package listings

import (
	"context"
	"strings"

	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errs.NotFound("listings: listing not found")
	ErrNotPublished    = errs.Validation("listings: listing is not published")
	ErrUnknownPolicy   = errs.Validation("listings: unknown cancellation policy")
	ErrGuestsLimit     = errs.Validation("listings: max guests must be at least 1")
	ErrNightlyRate     = errs.Validation("listings: nightly rate must be positive")
	ErrCleaningFee     = errs.Validation("listings: cleaning fee must be non-negative")
	ErrHostRequired    = errs.Validation("listings: host is required")
)

type ListingID string
type HostID string

// CancellationPolicy is the refund schedule a host picks for a listing.
type CancellationPolicy string

const (
	PolicyFlexible    CancellationPolicy = "flexible"
	PolicyModerate    CancellationPolicy = "moderate"
	PolicyStrict      CancellationPolicy = "strict"
	PolicySuperStrict CancellationPolicy = "super_strict"
)

// ParsePolicy accepts the canonical names case-insensitively.
func ParsePolicy(raw string) (CancellationPolicy, error) {
	p := CancellationPolicy(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", ErrUnknownPolicy
	}
	return p, nil
}

func (p CancellationPolicy) Valid() bool {
	switch p {
	case PolicyFlexible, PolicyModerate, PolicyStrict, PolicySuperStrict:
		return true
	}
	return false
}

// Listing is the read-only snapshot the booking engine needs from the catalog.
// The catalog itself is owned by another service.
type Listing struct {
	ID                 ListingID
	Host               HostID
	Title              string
	NightlyRate        money.Money
	CleaningFee        money.Money
	MaxGuests          int
	CancellationPolicy CancellationPolicy
	Published          bool
}

func (l *Listing) Validate() error {
	if strings.TrimSpace(string(l.Host)) == "" {
		return ErrHostRequired
	}
	if l.MaxGuests < 1 {
		return ErrGuestsLimit
	}
	if l.NightlyRate.Amount <= 0 {
		return ErrNightlyRate
	}
	if l.CleaningFee.Amount < 0 {
		return ErrCleaningFee
	}
	if !l.CancellationPolicy.Valid() {
		return ErrUnknownPolicy
	}
	return nil
}

// AcceptsGuests reports whether a party of n fits the listing.
func (l *Listing) AcceptsGuests(n int) bool {
	return n >= 1 && n <= l.MaxGuests
}

func (l *Listing) Currency() string {
	if l.NightlyRate.Currency != "" {
		return l.NightlyRate.Currency
	}
	return money.DefaultCurrency
}

// Reader resolves listing snapshots.
type Reader interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
}

// Repository is implemented by stores that keep a local copy of the catalog.
type Repository interface {
	Reader
	Save(ctx context.Context, listing *Listing) error
}
