package repository

import (
	"context"
	"time"

	"stockroom/infrastructure/persistence"
)

// auditInterceptor enforces the audit and soft-delete invariants uniformly,
// outside any single repository. It runs exactly once per SaveChanges, over
// every queued change, before any store write is issued.
//
// Inserts are stamped with the acting identity and the current UTC time;
// updates stamp the updated pair while the apply path shields the created
// pair from being overwritten; deletes are converted into soft-delete
// updates carrying the deleting actor.
type auditInterceptor struct{}

func (auditInterceptor) Stamp(ctx context.Context, changes []*change) {
	now := time.Now().UTC()
	actor := persistence.ActorFromContext(ctx)

	for _, c := range changes {
		switch c.kind {
		case opInsert:
			m := c.entity.Meta()
			m.CreatedAt = now
			m.CreatedBy = actor
			m.UpdatedAt = now
			m.UpdatedBy = actor
			m.IsDeleted = false
			if m.Version == 0 {
				m.Version = 1
			}

		case opUpdate:
			m := c.entity.Meta()
			m.UpdatedAt = now
			m.UpdatedBy = actor

		case opDelete:
			c.stampActor = actor
			c.stampTime = now
		}
	}
}
