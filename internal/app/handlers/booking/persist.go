package booking

import (
	"context"

	"staykeeper/internal/app/outbox"
	domainbooking "staykeeper/internal/domain/booking"
)

// persist saves b and hands its pending events to the outbox inside the same
// unit of work.
func persist(ctx context.Context, repo domainbooking.Repository, box outbox.Outbox, enc outbox.EventEncoder, b *domainbooking.Booking) error {
	if err := repo.Save(ctx, b); err != nil {
		return err
	}
	return outbox.RecordDomainEvents(ctx, box, enc, b.Drain())
}
