// Package repository implements persistence on MySQL through database/sql.
// Repositories expose plain methods on *sql.DB and, where a caller needs
// to group writes, methods that run on a caller-owned *sql.Tx.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a write cannot proceed because of
// dependent rows or state, such as deleting a match that still has
// participants.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

const (
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
)

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrno(err) == errDuplicateEntry }

// isDuplicateKey reports a duplicate entry on the named unique index.
// MySQL names it as 'key' or 'table.key' in the message.
func isDuplicateKey(err error, key string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != errDuplicateEntry {
		return false
	}
	return strings.HasSuffix(me.Message, "'"+key+"'") || strings.Contains(me.Message, "."+key+"'")
}

func isReferenced(err error) bool { return mysqlErrno(err) == errRowIsReferenced }
