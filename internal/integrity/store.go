package integrity

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/orderdesk/internal/platform/db"
)

type relation struct {
	table      string
	foreignKey string
}

var relations = map[[2]Entity]relation{
	{Customer, Order}:    {table: "orders", foreignKey: "customer_id"},
	{Product, OrderItem}: {table: "order_items", foreignKey: "product_id"},
	{Order, OrderItem}:   {table: "order_items", foreignKey: "order_id"},
}

type pgStore struct {
	db db.DBTX
}

// NewStore returns a Store issuing SQL through q, normally an open pgx.Tx.
func NewStore(q db.DBTX) Store {
	return &pgStore{db: q}
}

func (s *pgStore) CountChildren(ctx context.Context, rule Rule, parentID int64) (int, error) {
	rel, err := lookup(rule)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", rel.table, rel.foreignKey)
	if err := s.db.QueryRow(ctx, query, parentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *pgStore) DeleteChildren(ctx context.Context, rule Rule, parentID int64) (int64, error) {
	rel, err := lookup(rule)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rel.table, rel.foreignKey)
	tag, err := s.db.Exec(ctx, query, parentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func lookup(rule Rule) (relation, error) {
	rel, ok := relations[[2]Entity{rule.Parent, rule.Child}]
	if !ok {
		return relation{}, fmt.Errorf("integrity: no relation from %s to %s", rule.Parent, rule.Child)
	}
	return rel, nil
}
