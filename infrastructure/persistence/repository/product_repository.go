package repository

import (
	"context"

	"stockroom/domain/inventory"
	"stockroom/domain/shared"
)

type productRepository struct {
	*Engine[inventory.Product]
}

func newProductRepository(uow *UnitOfWork) *productRepository {
	return &productRepository{Engine: newEngine[inventory.Product](uow, "products", "product")}
}

// SKUExists checks SKU uniqueness over live rows only. excludeID skips the
// row being updated.
func (r *productRepository) SKUExists(ctx context.Context, sku string, excludeID int64) shared.Result[bool] {
	if err := ctx.Err(); err != nil {
		return failure[bool](ctx, r.name, err)
	}

	q := r.baseQuery(ctx, false).Where("sku = ?", sku)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return failure[bool](ctx, r.name, err)
	}
	return shared.Ok(count > 0)
}

func (r *productRepository) ByCategory(ctx context.Context, categoryID int64) shared.Result[[]*inventory.Product] {
	spec := shared.NewSpecification[inventory.Product]().
		Where(shared.Eq("category_id", categoryID)).
		OrderBy("name")
	return r.Find(ctx, spec)
}

// BySupplier resolves products through the product_suppliers link table.
// Only live links count; a soft-deleted link removes the product from the
// supplier's catalogue without touching the product itself.
func (r *productRepository) BySupplier(ctx context.Context, supplierID int64) shared.Result[[]*inventory.Product] {
	if err := ctx.Err(); err != nil {
		return failure[[]*inventory.Product](ctx, r.name, err)
	}

	var items []*inventory.Product
	err := r.baseQuery(ctx, false).
		Joins("JOIN product_suppliers ps ON ps.product_id = products.id").
		Where("ps.supplier_id = ? AND ps.is_deleted = ?", supplierID, false).
		Distinct("products.*").
		Order("products.name").
		Find(&items).Error
	if err != nil {
		return failure[[]*inventory.Product](ctx, r.name, err)
	}
	if items == nil {
		items = []*inventory.Product{}
	}
	return shared.Ok(items)
}

// BelowReorderLevel lists live products whose stock has reached the reorder
// threshold. Column-to-column comparison, so it bypasses the criteria tree.
func (r *productRepository) BelowReorderLevel(ctx context.Context) shared.Result[[]*inventory.Product] {
	if err := ctx.Err(); err != nil {
		return failure[[]*inventory.Product](ctx, r.name, err)
	}

	var items []*inventory.Product
	err := r.baseQuery(ctx, false).
		Where("current_stock <= reorder_level").
		Order("name").
		Find(&items).Error
	if err != nil {
		return failure[[]*inventory.Product](ctx, r.name, err)
	}
	if items == nil {
		items = []*inventory.Product{}
	}
	return shared.Ok(items)
}

// TotalInventoryValue sums price * current stock over live products, in
// cents. An empty catalogue values at zero, not a failure.
func (r *productRepository) TotalInventoryValue(ctx context.Context) shared.Result[int64] {
	if err := ctx.Err(); err != nil {
		return failure[int64](ctx, r.name, err)
	}

	var total int64
	err := r.baseQuery(ctx, false).
		Select("COALESCE(SUM(price_cents * current_stock), 0)").
		Scan(&total).Error
	if err != nil {
		return failure[int64](ctx, r.name, err)
	}
	return shared.Ok(total)
}

// UpdateStockLevel applies a stock delta and records the movement, both
// queued on the unit of work so they commit or fail together at SaveChanges.
// A delta that would drive CurrentStock negative fails with 400 and queues
// nothing.
func (r *productRepository) UpdateStockLevel(ctx context.Context, productID int64, delta int, reference string) shared.Result[*inventory.Product] {
	if delta == 0 {
		return shared.ValidationFailed[*inventory.Product]("stock delta must be non-zero").
			WithCorrelationID(correlationID(ctx))
	}

	res := r.GetByID(ctx, productID, true)
	if res.IsFailure() {
		return res
	}
	product := res.Value

	next := product.CurrentStock + delta
	if next < 0 {
		return shared.ValidationFailed[*inventory.Product](
			"insufficient stock",
			"current_stock: applying the delta would drive stock below zero",
		).WithCorrelationID(correlationID(ctx))
	}
	product.CurrentStock = next

	if upd := r.Update(ctx, product); upd.IsFailure() {
		return upd
	}

	movement := &inventory.StockMovement{
		ProductID:      productID,
		QuantityChange: delta,
		Reference:      reference,
	}
	if mv := r.uow.StockMovements().RecordMovement(ctx, movement); mv.IsFailure() {
		return shared.Fail[*inventory.Product](mv.StatusCode, mv.Message, mv.Errors...).
			WithCorrelationID(mv.CorrelationID)
	}

	return shared.Ok(product)
}

var _ inventory.ProductRepository = (*productRepository)(nil)
