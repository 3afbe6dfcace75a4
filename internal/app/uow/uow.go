package uow

import (
	"context"

	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	domainuser "staykeeper/internal/domain/user"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Users() domainuser.Repository
	Bookings() domainbooking.Repository
	Commissions() domaincommission.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
