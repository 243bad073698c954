package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/orderdesk/internal/integrity"
	"github.com/odyssey-erp/orderdesk/internal/platform/db"
	"github.com/odyssey-erp/orderdesk/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetOrder(ctx context.Context, id int64) (*Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
	CreateOrder(ctx context.Context, order Order) (*Order, error)
	UpdateOrder(ctx context.Context, id int64, updates map[string]any) (*Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	CountStatusBefore(ctx context.Context, status Status, before time.Time) (int, error)

	ListItems(ctx context.Context, orderIDs []int64) ([]OrderItem, error)
	ListAllItems(ctx context.Context, req ListItemsRequest) ([]OrderItem, int, error)
	GetItem(ctx context.Context, id int64) (*OrderItem, error)
	CreateItem(ctx context.Context, item OrderItem) (*OrderItem, error)
	UpdateItem(ctx context.Context, item OrderItem) (*OrderItem, error)
	DeleteItems(ctx context.Context, ids []int64) error

	LookupProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error)
	GetCustomer(ctx context.Context, id int64) (*CustomerRef, error)
	CustomerChoices(ctx context.Context) ([]CustomerRef, error)
	ProductChoices(ctx context.Context) ([]ProductRef, error)

	References() integrity.Store
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) References() integrity.Store {
	return integrity.NewStore(r.db)
}

const orderSelect = `
	SELECT o.id, o.customer_id, c.name, c.email, o.status, o.order_date, o.created_at, o.updated_at
	FROM orders o
	JOIN customers c ON c.id = o.customer_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &status,
		&o.OrderDate, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, id, "")
}

// GetOrderForUpdate locks the order row so concurrent batches on one order serialize.
func (r *repository) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, id, " FOR UPDATE OF o")
}

func (r *repository) getOrder(ctx context.Context, id int64, lock string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, orderSelect+" WHERE o.id = $1"+lock, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &shared.NotFoundError{Entity: "order", ID: id}
		}
		return nil, err
	}
	return o, nil
}

func (r *repository) ListOrders(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("o.customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders o"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s%s ORDER BY o.id DESC LIMIT $%d OFFSET $%d", orderSelect, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (r *repository) CreateOrder(ctx context.Context, order Order) (*Order, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (customer_id, status)
		VALUES ($1, $2)
		RETURNING id`,
		order.CustomerID, string(order.Status),
	).Scan(&id)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return r.GetOrder(ctx, id)
}

func (r *repository) UpdateOrder(ctx context.Context, id int64, updates map[string]any) (*Order, error) {
	query := "UPDATE orders SET updated_at = NOW()"
	var args []any
	argPos := 1
	for _, col := range []string{"customer_id", "status"} {
		v, ok := updates[col]
		if !ok {
			continue
		}
		if s, isStatus := v.(Status); isStatus {
			v = string(s)
		}
		query += fmt.Sprintf(", %s = $%d", col, argPos)
		args = append(args, v)
		argPos++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &shared.NotFoundError{Entity: "order", ID: id}
	}
	return r.GetOrder(ctx, id)
}

func (r *repository) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

// CountStatusBefore counts orders in status whose order date is before the given day.
func (r *repository) CountStatusBefore(ctx context.Context, status Status, before time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE status = $1 AND order_date < $2",
		string(status), before,
	).Scan(&n)
	return n, err
}

const itemSelect = `
	SELECT i.id, i.order_id, i.product_id, p.sku, p.name, i.quantity, i.unit_price, i.created_at, i.updated_at
	FROM order_items i
	JOIN products p ON p.id = i.product_id`

func scanItem(row pgx.Row) (*OrderItem, error) {
	var item OrderItem
	var price pgtype.Numeric
	if err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductSKU, &item.ProductName,
		&item.Quantity, &price, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.UnitPrice = db.Decimal(price)
	return &item, nil
}

func collectItems(rows pgx.Rows) ([]OrderItem, error) {
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListItems returns the lines of the given orders ordered by order then insertion.
func (r *repository) ListItems(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, itemSelect+" WHERE i.order_id = ANY($1) ORDER BY i.order_id, i.id", orderIDs)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (r *repository) ListAllItems(ctx context.Context, req ListItemsRequest) ([]OrderItem, int, error) {
	whereClause := ""
	var args []any
	argPos := 1
	if req.OrderID != nil {
		whereClause = fmt.Sprintf(" WHERE i.order_id = $%d", argPos)
		args = append(args, *req.OrderID)
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM order_items i"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s%s ORDER BY i.order_id, i.id LIMIT $%d OFFSET $%d", itemSelect, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) GetItem(ctx context.Context, id int64) (*OrderItem, error) {
	item, err := scanItem(r.db.QueryRow(ctx, itemSelect+" WHERE i.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &shared.NotFoundError{Entity: "order item", ID: id}
		}
		return nil, err
	}
	return item, nil
}

func (r *repository) CreateItem(ctx context.Context, item OrderItem) (*OrderItem, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, db.Numeric(item.UnitPrice),
	).Scan(&id)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return r.GetItem(ctx, id)
}

func (r *repository) UpdateItem(ctx context.Context, item OrderItem) (*OrderItem, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE order_items
		SET product_id = $1, quantity = $2, unit_price = $3, updated_at = NOW()
		WHERE id = $4`,
		item.ProductID, item.Quantity, db.Numeric(item.UnitPrice), item.ID,
	)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &shared.NotFoundError{Entity: "order item", ID: item.ID}
	}
	return r.GetItem(ctx, item.ID)
}

func (r *repository) DeleteItems(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := r.db.Exec(ctx, "DELETE FROM order_items WHERE id = ANY($1)", ids)
	if err != nil {
		return db.TranslateError(err)
	}
	if len(ids) == 1 && tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "order item", ID: ids[0]}
	}
	return nil
}

func (r *repository) LookupProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error) {
	out := make(map[int64]ProductRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, "SELECT id, sku, name, price, is_active FROM products WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ProductRef
		var price pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.IsActive); err != nil {
			return nil, err
		}
		p.Price = db.Decimal(price)
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repository) GetCustomer(ctx context.Context, id int64) (*CustomerRef, error) {
	var c CustomerRef
	err := r.db.QueryRow(ctx, "SELECT id, name, email FROM customers WHERE id = $1", id).Scan(&c.ID, &c.Name, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &shared.NotFoundError{Entity: "customer", ID: id}
		}
		return nil, err
	}
	return &c, nil
}

// CustomerChoices lists every customer by name for the order form.
func (r *repository) CustomerChoices(ctx context.Context) ([]CustomerRef, error) {
	rows, err := r.db.Query(ctx, "SELECT id, name, email FROM customers ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CustomerRef
	for rows.Next() {
		var c CustomerRef
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ProductChoices lists every product by SKU, inactive ones included so existing lines still render.
func (r *repository) ProductChoices(ctx context.Context) ([]ProductRef, error) {
	rows, err := r.db.Query(ctx, "SELECT id, sku, name, price, is_active FROM products ORDER BY sku")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductRef
	for rows.Next() {
		var p ProductRef
		var price pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.IsActive); err != nil {
			return nil, err
		}
		p.Price = db.Decimal(price)
		out = append(out, p)
	}
	return out, rows.Err()
}
