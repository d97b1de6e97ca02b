package repository

import (
	"context"
	"time"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
)

type stockMovementRepository struct {
	*Engine[inventory.StockMovement]
}

func newStockMovementRepository(uow *UnitOfWork) *stockMovementRepository {
	return &stockMovementRepository{Engine: newEngine[inventory.StockMovement](uow, "stock_movements", "stock movement")}
}

// ForProduct returns the product's movement history, newest first.
func (r *stockMovementRepository) ForProduct(ctx context.Context, productID int64) shared.Result[[]*inventory.StockMovement] {
	spec := shared.NewSpecification[inventory.StockMovement]().
		Where(shared.Eq("product_id", productID)).
		OrderByDescending("occurred_at")
	return r.Find(ctx, spec)
}

// InRange returns movements with from <= occurred_at <= to, oldest first.
func (r *stockMovementRepository) InRange(ctx context.Context, from, to time.Time) shared.Result[[]*inventory.StockMovement] {
	spec := shared.NewSpecification[inventory.StockMovement]().
		Where(shared.Between("occurred_at", from, to)).
		OrderBy("occurred_at")
	return r.Find(ctx, spec)
}

// RecordMovement validates a history entry and queues it for the next
// SaveChanges. The kind defaults from the sign of the quantity change and
// OccurredAt defaults to now.
func (r *stockMovementRepository) RecordMovement(ctx context.Context, movement *inventory.StockMovement) shared.Result[*inventory.StockMovement] {
	if movement == nil {
		return shared.ValidationFailed[*inventory.StockMovement]("stock movement is required").
			WithCorrelationID(correlationID(ctx))
	}
	var fieldErrors []string
	if movement.ProductID <= 0 {
		fieldErrors = append(fieldErrors, "product_id: must reference a product")
	}
	if movement.QuantityChange == 0 {
		fieldErrors = append(fieldErrors, "quantity_change: must not be zero")
	}
	switch movement.Kind {
	case inventory.MovementIn, inventory.MovementOut, inventory.MovementAdjustment:
	case "":
		if movement.QuantityChange > 0 {
			movement.Kind = inventory.MovementIn
		} else {
			movement.Kind = inventory.MovementOut
		}
	default:
		fieldErrors = append(fieldErrors, "kind: must be in, out or adjustment")
	}
	if len(fieldErrors) > 0 {
		return shared.ValidationFailed[*inventory.StockMovement]("invalid stock movement", fieldErrors...).
			WithCorrelationID(correlationID(ctx))
	}
	if movement.OccurredAt.IsZero() {
		movement.OccurredAt = time.Now().UTC()
	}
	return r.Add(ctx, movement)
}

var _ inventory.StockMovementRepository = (*stockMovementRepository)(nil)
