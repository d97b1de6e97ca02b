package repository

import (
	"context"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
)

type supplierRepository struct {
	*Engine[inventory.Supplier]
}

func newSupplierRepository(uow *UnitOfWork) *supplierRepository {
	return &supplierRepository{Engine: newEngine[inventory.Supplier](uow, "suppliers", "supplier")}
}

// EmailExists checks email uniqueness over live rows, case-insensitively.
// excludeID skips the row being updated.
func (r *supplierRepository) EmailExists(ctx context.Context, email string, excludeID int64) shared.Result[bool] {
	if err := ctx.Err(); err != nil {
		return failure[bool](ctx, r.name, err)
	}

	q := r.baseQuery(ctx, false).Where("LOWER(email) = LOWER(?)", email)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return failure[bool](ctx, r.name, err)
	}
	return shared.Ok(count > 0)
}

// SearchByName matches suppliers whose name contains the term. Wildcards in
// the term are treated literally.
func (r *supplierRepository) SearchByName(ctx context.Context, term string) shared.Result[[]*inventory.Supplier] {
	spec := shared.NewSpecification[inventory.Supplier]().
		Where(shared.Contains("name", term)).
		OrderBy("name")
	return r.Find(ctx, spec)
}

var _ inventory.SupplierRepository = (*supplierRepository)(nil)
