package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// PostgreSQL SQLSTATE codes handled by TranslateError.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// constraintFields maps schema constraint names to the request field they guard.
var constraintFields = map[string]string{
	"products_sku_key":              "sku",
	"order_items_order_product_key": "product_id",
	"orders_customer_id_fkey":       "customer_id",
	"order_items_product_id_fkey":   "product_id",
	"order_items_order_id_fkey":     "order_id",
	"products_price_check":          "price",
	"order_items_quantity_check":    "quantity",
	"order_items_unit_price_check":  "unit_price",
	"orders_status_check":           "status",
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// TranslateError converts constraint violations that escaped service validation into
// shared error kinds. Other errors are returned unchanged.
func TranslateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	field := constraintFields[pgErr.ConstraintName]
	if field == "" {
		field = "__all__"
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return shared.NewValidationError(field, "A record with this value already exists.")
	case codeCheckViolation:
		return shared.NewValidationError(field, "Enter a valid value.")
	case codeForeignKeyViolation:
		// A delete blocked by RESTRICT reports the referencing table.
		if strings.HasPrefix(pgErr.Message, "update or delete") {
			return &shared.ReferentialIntegrityError{
				Entity:       entityName(pgErr.TableName),
				ID:           referencedKey(pgErr.Detail),
				ReferencedBy: entityName(referencingTable(pgErr.Detail)),
				Count:        1,
			}
		}
		return shared.NewValidationError(field, "Select a valid choice. That choice is not one of the available choices.")
	}
	return err
}

var tableEntities = map[string]string{
	"customers":   "customer",
	"products":    "product",
	"orders":      "order",
	"order_items": "order_item",
}

func entityName(table string) string {
	if name, ok := tableEntities[table]; ok {
		return name
	}
	return table
}

func referencingTable(detail string) string {
	const marker = "referenced from table \""
	i := strings.Index(detail, marker)
	if i < 0 {
		return "record"
	}
	rest := detail[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		return rest[:j]
	}
	return rest
}

// referencedKey reads the id from a detail such as `Key (id)=(5) is still referenced ...`.
// It returns 0 when the detail carries no numeric key.
func referencedKey(detail string) int64 {
	const marker = "Key (id)=("
	i := strings.Index(detail, marker)
	if i < 0 {
		return 0
	}
	rest := detail[i+len(marker):]
	j := strings.IndexByte(rest, ')')
	if j < 0 {
		return 0
	}
	id, err := strconv.ParseInt(rest[:j], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
