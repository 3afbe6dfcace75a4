package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	domainuser "staykeeper/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a session. Writable units also open a snapshot transaction;
// read-only units read outside of one.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, translate(err)
	}
	unit := &Unit{db: f.DB, session: session, readOnly: opts.ReadOnly}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, translate(err)
	}
	return unit, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool
	done     bool
}

func (u *Unit) Listings() domainlistings.Repository {
	return NewListingRepository(u.db)
}

func (u *Unit) Users() domainuser.Repository {
	return NewUserRepository(u.db)
}

func (u *Unit) Bookings() domainbooking.Repository {
	return NewBookingRepository(u.db)
}

func (u *Unit) Commissions() domaincommission.Repository {
	return NewCommissionRepository(u.db)
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(context.WithoutCancel(ctx))
	if u.readOnly {
		return nil
	}
	return translate(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	ctx = context.WithoutCancel(ctx)
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
