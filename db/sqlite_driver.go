package db

import (
	"database/sql"
	"fmt"
	"regexp"
	"slices"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// RegisterDriver registers a go-sqlite3 driver under name whose connections
// carry the document SQL functions backed by codec.
func RegisterDriver(name string, codec *Codec) error {
	if slices.Contains(sql.Drivers(), name) {
		return fmt.Errorf("sql driver %q already registered", name)
	}

	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// Usage: column REGEXP 'pattern'
			if err := conn.RegisterFunc("regexp", regexpMatch, true); err != nil {
				return fmt.Errorf("failed to register function regexp: %w", err)
			}
			return RegisterDocumentFuncs(conn, codec)
		},
	})

	log.Debug().Str("driver", name).Msg("Registered SQLite driver with document functions")
	return nil
}

// regexpMatch implements REGEXP
// Returns 1 if text matches pattern, 0 otherwise
func regexpMatch(pattern, text string) (bool, error) {
	return regexp.MatchString(pattern, text)
}
