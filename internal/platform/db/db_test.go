package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/orderdesk/internal/shared"
	"github.com/odyssey-erp/orderdesk/migrations"
)

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/orderdesk?sslmode=disable", MigrationURL("postgres://u:p@localhost:5432/orderdesk?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/db", MigrationURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://already", MigrationURL("pgx5://already"))
}

func TestMigrationsEmbedded(t *testing.T) {
	up, err := migrations.FS.ReadFile("0001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "DEFERRABLE INITIALLY DEFERRED")
	assert.Contains(t, string(up), "ON DELETE CASCADE")

	_, err = migrations.FS.ReadFile("0001_init.down.sql")
	require.NoError(t, err)
}

func TestTranslateUniqueViolation(t *testing.T) {
	err := TranslateError(&pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"})

	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "sku")
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
}

func TestTranslateRestrictedDelete(t *testing.T) {
	err := TranslateError(&pgconn.PgError{
		Code:      "23503",
		TableName: "customers",
		Message:   `update or delete on table "customers" violates foreign key constraint "orders_customer_id_fkey" on table "orders"`,
		Detail:    `Key (id)=(1) is still referenced from table "orders".`,
	})

	var rerr *shared.ReferentialIntegrityError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "customer", rerr.Entity)
	assert.Equal(t, "order", rerr.ReferencedBy)
	assert.Equal(t, int64(1), rerr.ID)
	assert.Equal(t, "cannot delete customer 1: referenced by 1 order record(s)", err.Error())
	assert.ErrorIs(t, err, shared.ErrProtected)
}

func TestTranslateRestrictedDeleteWithoutKey(t *testing.T) {
	err := TranslateError(&pgconn.PgError{
		Code:      "23503",
		TableName: "products",
		Message:   `update or delete on table "products" violates foreign key constraint "order_items_product_id_fkey" on table "order_items"`,
		Detail:    `Key is still referenced from table "order_items".`,
	})

	var rerr *shared.ReferentialIntegrityError
	require.True(t, errors.As(err, &rerr))
	assert.Zero(t, rerr.ID)
	assert.Equal(t, "cannot delete product: referenced by 1 order_item record(s)", err.Error())
}

func TestTranslateMissingReference(t *testing.T) {
	err := TranslateError(&pgconn.PgError{
		Code:           "23503",
		ConstraintName: "orders_customer_id_fkey",
		Message:        `insert or update on table "orders" violates foreign key constraint "orders_customer_id_fkey"`,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestTranslatePassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, TranslateError(plain))
}

func TestNumericRoundTrip(t *testing.T) {
	in := decimal.RequireFromString("1234.50")
	out := Decimal(Numeric(in))
	assert.True(t, in.Equal(out))
	assert.Equal(t, "1234.50", out.StringFixed(2))

	assert.True(t, Decimal(pgtype.Numeric{}).IsZero())
}
