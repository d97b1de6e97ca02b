package repository

import (
	"context"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
)

type categoryRepository struct {
	*Engine[inventory.Category]
}

func newCategoryRepository(uow *UnitOfWork) *categoryRepository {
	return &categoryRepository{Engine: newEngine[inventory.Category](uow, "categories", "category")}
}

// NameExists checks name uniqueness over live rows only; a soft-deleted
// category does not block reuse of its name. excludeID skips the row being
// updated.
func (r *categoryRepository) NameExists(ctx context.Context, name string, excludeID int64) shared.Result[bool] {
	if err := ctx.Err(); err != nil {
		return failure[bool](ctx, r.name, err)
	}

	q := r.baseQuery(ctx, false).Where("name = ?", name)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return failure[bool](ctx, r.name, err)
	}
	return shared.Ok(count > 0)
}

func (r *categoryRepository) FindActive(ctx context.Context) shared.Result[[]*inventory.Category] {
	spec := shared.NewSpecification[inventory.Category]().
		Where(shared.Eq("is_active", true)).
		OrderBy("name")
	return r.Find(ctx, spec)
}

var _ inventory.CategoryRepository = (*categoryRepository)(nil)
