// Package repository implements the persistence ports on MySQL with sqlx.
// Missing rows surface as model.ErrNotFound and unique key violations as
// model.ErrConflict so handlers can map them onto 404 and 409 without
// knowing about the driver.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/store-reservation/internal/model"
)

// errDuplicateEntry is MySQL's ER_DUP_ENTRY.
const errDuplicateEntry = 1062

// notFound maps sql.ErrNoRows onto model.ErrNotFound for the named row.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, model.ErrNotFound)...)
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}
