package repository

import (
	"time"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"

	"gorm.io/gorm"
)

type changeKind int

const (
	opInsert changeKind = iota
	opUpdate
	opDelete
)

// change is one queued write. Repositories enqueue changes on their unit of
// work; SaveChanges stamps and applies them in issue order.
type change struct {
	kind   changeKind
	entity inventory.Entity // audit access; nil for deletes
	value  any              // *T for insert/update
	model  any              // new(T), names the table for deletes
	id     int64            // delete target
	name   string           // entity name for error messages

	// soft-delete stamp, filled by the interceptor
	stampActor string
	stampTime  time.Time
}

// apply issues the change against tx and returns rows affected.
func (c *change) apply(tx *gorm.DB) (int64, error) {
	switch c.kind {
	case opInsert:
		res := tx.Create(c.value)
		if res.Error != nil {
			return 0, classifyStoreError(res.Error, c.name)
		}
		return res.RowsAffected, nil

	case opUpdate:
		return c.applyUpdate(tx)

	case opDelete:
		// deleted_ref takes the row id so the tombstone drops out of the
		// live uniqueness indexes.
		res := tx.Model(c.model).
			Where("id = ? AND is_deleted = ?", c.id, false).
			Updates(map[string]any{
				"is_deleted":  true,
				"deleted_ref": c.id,
				"updated_at":  c.stampTime,
				"updated_by":  c.stampActor,
			})
		if res.Error != nil {
			return 0, classifyStoreError(res.Error, c.name)
		}
		if res.RowsAffected == 0 {
			return 0, shared.NewNotFoundError(c.name)
		}
		return res.RowsAffected, nil
	}
	return 0, shared.NewUnexpectedStoreError(c.name)
}

// applyUpdate writes every column under the optimistic lock: the row's
// stored version must equal the version the entity was read with. Zero rows
// affected is disambiguated into not-found versus a stale token.
func (c *change) applyUpdate(tx *gorm.DB) (int64, error) {
	meta := c.entity.Meta()
	expected := meta.Version
	meta.Version = expected + 1

	res := tx.Model(c.value).
		Where("version = ?", expected).
		Select("*").
		Omit("created_at", "created_by").
		Updates(c.value)

	if res.Error != nil {
		meta.Version = expected
		return 0, classifyStoreError(res.Error, c.name)
	}
	if res.RowsAffected == 0 {
		meta.Version = expected
		var count int64
		if err := tx.Model(c.model).Where("id = ?", meta.ID).Count(&count).Error; err != nil {
			return 0, classifyStoreError(err, c.name)
		}
		if count == 0 {
			return 0, shared.NewNotFoundError(c.name)
		}
		return 0, shared.NewConcurrencyConflictError(c.name, meta.ID)
	}
	return res.RowsAffected, nil
}
