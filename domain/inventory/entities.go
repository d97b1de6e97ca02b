// Package inventory holds the persisted inventory records and the ports the
// service layer consumes. Infrastructure implements the ports; nothing here
// depends on a store.
package inventory

import (
	"time"
)

// BaseEntity is embedded by every persisted record. Audit fields are stamped
// exclusively by the persistence boundary; callers never set them. Delete
// operations flip IsDeleted instead of removing the row, and Version is the
// optimistic concurrency token checked on every update.
type BaseEntity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `gorm:"size:64" json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `gorm:"size:64" json:"updated_by"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	IsDeleted bool      `gorm:"index;default:false" json:"is_deleted"`
	Version   int64     `gorm:"default:1" json:"version"`

	// DeletedRef is 0 while the row is live and takes the row id on soft
	// delete. Composite unique indexes over (column, deleted_ref) therefore
	// constrain live rows only: every deleted duplicate carries a distinct
	// ref. This works on MySQL, which has no partial indexes.
	DeletedRef int64 `gorm:"default:0" json:"-"`
}

// Meta exposes the embedded base to the generic persistence engine.
func (b *BaseEntity) Meta() *BaseEntity { return b }

// Entity is satisfied by a pointer to any persisted record.
type Entity interface {
	Meta() *BaseEntity
}

// Category groups products. Name uniqueness is enforced over live rows only,
// so a deleted category's name may be reused.
type Category struct {
	BaseEntity
	Name        string    `gorm:"size:128" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	Products    []Product `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

// Product is a stocked item. PriceCents avoids floating point money;
// CurrentStock never goes negative.
type Product struct {
	BaseEntity
	Name             string            `gorm:"size:128;index" json:"name"`
	SKU              string            `gorm:"size:64" json:"sku"`
	Description      string            `gorm:"size:512" json:"description"`
	PriceCents       int64             `json:"price_cents"`
	CurrentStock     int               `json:"current_stock"`
	ReorderLevel     int               `json:"reorder_level"`
	CategoryID       int64             `gorm:"index" json:"category_id"`
	Category         *Category         `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	ProductSuppliers []ProductSupplier `gorm:"foreignKey:ProductID" json:"product_suppliers,omitempty"`
}

// Supplier provides products. Email uniqueness is scoped to live rows.
type Supplier struct {
	BaseEntity
	Name             string            `gorm:"size:128;index" json:"name"`
	Email            string            `gorm:"size:128" json:"email"`
	Phone            string            `gorm:"size:32" json:"phone"`
	Address          string            `gorm:"size:256" json:"address"`
	ProductSuppliers []ProductSupplier `gorm:"foreignKey:SupplierID" json:"product_suppliers,omitempty"`
}

// ProductSupplier links a product to one of its suppliers with the
// negotiated cost and lead time.
type ProductSupplier struct {
	BaseEntity
	ProductID     int64     `gorm:"index" json:"product_id"`
	SupplierID    int64     `gorm:"index" json:"supplier_id"`
	UnitCostCents int64     `json:"unit_cost_cents"`
	LeadTimeDays  int       `json:"lead_time_days"`
	Product       *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Supplier      *Supplier `gorm:"foreignKey:SupplierID;constraint:OnDelete:RESTRICT" json:"supplier,omitempty"`
}

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementIn         MovementKind = "in"
	MovementOut        MovementKind = "out"
	MovementAdjustment MovementKind = "adjustment"
)

// StockMovement is the immutable history of stock level changes.
type StockMovement struct {
	BaseEntity
	ProductID      int64        `gorm:"index" json:"product_id"`
	Product        *Product     `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	QuantityChange int          `json:"quantity_change"`
	Kind           MovementKind `gorm:"size:16" json:"kind"`
	Reference      string       `gorm:"size:128" json:"reference"`
	Note           string       `gorm:"size:512" json:"note"`
	OccurredAt     time.Time    `gorm:"index" json:"occurred_at"`
}

// Compile-time checks that every record exposes its audit base.
var (
	_ Entity = (*Category)(nil)
	_ Entity = (*Product)(nil)
	_ Entity = (*Supplier)(nil)
	_ Entity = (*ProductSupplier)(nil)
	_ Entity = (*StockMovement)(nil)
)
