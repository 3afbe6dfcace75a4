package relational

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	domainuser "staykeeper/internal/domain/user"
)

var ErrUnitOfWorkNotConfigured = errors.New("relational: unit of work factory missing database")

// Factory opens gorm transactions for writable units. Read-only units query
// the pool directly.
type Factory struct {
	DB *DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.DB.Gorm == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	if opts.ReadOnly {
		return &Unit{handle: f.DB.Gorm, readOnly: true}, nil
	}
	tx := f.DB.Gorm.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, translate(tx.Error)
	}
	return &Unit{handle: tx}, nil
}

type Unit struct {
	handle   *gorm.DB
	readOnly bool
	done     bool
}

func (u *Unit) Listings() domainlistings.Repository {
	return &ListingRepository{db: u.handle}
}

func (u *Unit) Users() domainuser.Repository {
	return &UserRepository{db: u.handle}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return &BookingRepository{db: u.handle}
}

func (u *Unit) Commissions() domaincommission.Repository {
	return &CommissionRepository{db: u.handle}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		_ = u.handle.Rollback().Error
		return translate(err)
	}
	return translate(u.handle.Commit().Error)
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	return u.handle.Rollback().Error
}

type txKey struct{}

// InjectContext exposes the open transaction to stores that are not reached
// through the unit, such as the outbox.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if u.readOnly {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, u.handle)
}

// conn returns the transaction carried by ctx, or base outside of a unit.
func conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return base.WithContext(ctx)
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
