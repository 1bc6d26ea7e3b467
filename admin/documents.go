package admin

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/go-chi/chi/v5"
	"github.com/maxpert/sqlbson/bson"
	"github.com/maxpert/sqlbson/db"
	"github.com/maxpert/sqlbson/storage"
	"github.com/rs/zerolog/log"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// documentQuery builds SELECT column FROM table WHERE rowid = ?
func documentQuery(table, column string, rowID int64) (string, []interface{}, error) {
	return goqu.Dialect("sqlite3").
		From(table).
		Select(goqu.C(column)).
		Where(goqu.C("rowid").Eq(rowID)).
		Prepared(true).
		ToSQL()
}

func (h *AdminHandlers) handleDocument(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	column := chi.URLParam(r, "column")

	if !identifierPattern.MatchString(table) || !identifierPattern.MatchString(column) {
		writeErrorResponse(w, http.StatusBadRequest, "invalid table or column name")
		return
	}
	if !h.filter.Match(table) {
		writeErrorResponse(w, http.StatusForbidden, "table '"+table+"' is not allowed")
		return
	}

	rowID, err := strconv.ParseInt(chi.URLParam(r, "rowid"), 10, 64)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid rowid")
		return
	}

	query, args, err := documentQuery(table, column, rowID)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nd db.NullDocument
	err = h.db.QueryRowContext(r.Context(), query, args...).Scan(h.codec.Scanner(&nd))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeErrorResponse(w, http.StatusNotFound, "row not found")
		return
	case err != nil:
		h.writeReadError(w, err, table, column, rowID)
		return
	}

	if !nd.Valid {
		writeJSONResponse(w, nil)
		return
	}

	out, err := nd.Document.MarshalJSON()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONResponse(w, json.RawMessage(out))
}

func (h *AdminHandlers) writeReadError(w http.ResponseWriter, err error, table, column string, rowID int64) {
	if kind, ok := bson.ErrorKindOf(err); ok {
		log.Warn().Err(err).Str("table", table).Str("column", column).Int64("rowid", rowID).Msg("Stored document is malformed")
		writeErrorKindResponse(w, http.StatusUnprocessableEntity, err.Error(), string(kind))
		return
	}
	if errors.Is(err, storage.ErrFetchFailed) {
		log.Error().Err(err).Str("table", table).Str("column", column).Int64("rowid", rowID).Msg("Failed to fetch stored document")
		writeErrorKindResponse(w, http.StatusInternalServerError, err.Error(), "fetch_failed")
		return
	}
	writeErrorResponse(w, http.StatusBadRequest, err.Error())
}
