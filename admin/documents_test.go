package admin

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/maxpert/sqlbson/bson"
	"github.com/maxpert/sqlbson/cfg"
	"github.com/maxpert/sqlbson/db"
	"github.com/maxpert/sqlbson/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var driverSeq atomic.Int64

type testEnv struct {
	server  *httptest.Server
	codec   *db.Codec
	toaster *storage.Toaster
}

func newTestEnv(t *testing.T, allowed ...string) *testEnv {
	t.Helper()

	toaster, err := storage.NewToaster(storage.NewMemoryStore(), storage.ToasterOptions{
		CompressThreshold: 64,
		ExternalThreshold: 1024,
		CompressionLevel:  1,
	})
	require.NoError(t, err)
	t.Cleanup(toaster.Close)
	codec := db.NewCodec(toaster)

	name := fmt.Sprintf("sqlite3_bson_admin_test_%d", driverSeq.Add(1))
	require.NoError(t, db.RegisterDriver(name, codec))
	conn, err := sql.Open(name, ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec("CREATE TABLE docs (id INTEGER PRIMARY KEY, doc bson)")
	require.NoError(t, err)
	_, err = conn.Exec("CREATE TABLE secrets (id INTEGER PRIMARY KEY, doc bson)")
	require.NoError(t, err)

	large := bson.NewDocument()
	for i := 0; i < 400; i++ {
		large.Append(fmt.Sprintf("k%d", i), bson.String("repeated value"))
	}
	rows := []struct {
		id  int
		doc *bson.Document
	}{
		{1, db.SampleDocument()},
		{2, nil},
		{4, large},
	}
	for _, row := range rows {
		_, err := conn.Exec("INSERT INTO docs (id, doc) VALUES (?, ?)", row.id, codec.Value(row.doc))
		require.NoError(t, err)
	}
	_, err = conn.Exec("INSERT INTO docs (id, doc) VALUES (3, X'000600000000')")
	require.NoError(t, err)

	filter, err := NewTableFilter(allowed)
	require.NoError(t, err)

	mux := http.NewServeMux()
	RegisterRoutes(mux, NewAdminHandlers(conn, codec, filter, toaster))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, codec: codec, toaster: toaster}
}

func (e *testEnv) get(t *testing.T, path string, headers ...string) (int, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestDocumentEndpoint(t *testing.T) {
	env := newTestEnv(t, "do*")

	tests := []struct {
		name   string
		path   string
		status int
		data   string
		kind   string
	}{
		{"sample", "/documents/docs/doc/1", http.StatusOK, `{"name":"abc","age":43,"phones":["0001","0002"]}`, ""},
		{"null", "/documents/docs/doc/2", http.StatusOK, `null`, ""},
		{"malformed", "/documents/docs/doc/3", http.StatusUnprocessableEntity, "", `"length_mismatch"`},
		{"missing row", "/documents/docs/doc/99", http.StatusNotFound, "", ""},
		{"bad rowid", "/documents/docs/doc/abc", http.StatusBadRequest, "", ""},
		{"not allowed", "/documents/secrets/doc/1", http.StatusForbidden, "", ""},
		{"bad identifier", "/documents/docs/do%20c/1", http.StatusBadRequest, "", ""},
		{"unknown column", "/documents/docs/nope/1", http.StatusBadRequest, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.get(t, tc.path)
			assert.Equal(t, tc.status, status, "body: %v", body)
			if tc.data != "" {
				assert.JSONEq(t, tc.data, string(body["data"]))
			}
			if tc.kind != "" {
				assert.Equal(t, tc.kind, string(body["kind"]))
			}
		})
	}

	assert.Equal(t, int64(0), env.toaster.Outstanding())
}

func TestDocumentEndpoint_CompressedRow(t *testing.T) {
	env := newTestEnv(t, "docs")

	status, body := env.get(t, "/documents/docs/doc/4")
	require.Equal(t, http.StatusOK, status)

	doc, err := bson.FromJSON(body["data"])
	require.NoError(t, err)
	assert.Equal(t, 400, doc.Len())
	assert.Equal(t, int64(0), env.toaster.Outstanding())
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"ok"`, string(body["status"]))
	assert.Equal(t, `0`, string(body["outstanding_buffers"]))
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "*")

	prev := cfg.Config.Admin.AuthToken
	cfg.Config.Admin.AuthToken = "s3cret"
	defer func() { cfg.Config.Admin.AuthToken = prev }()

	tests := []struct {
		name    string
		headers []string
		status  int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"bad format", []string{"Authorization", "Basic abc"}, http.StatusUnauthorized},
		{"wrong token", []string{"Authorization", "Bearer nope"}, http.StatusUnauthorized},
		{"bearer", []string{"Authorization", "Bearer s3cret"}, http.StatusOK},
		{"header", []string{"X-Sqlbson-Token", "s3cret"}, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := env.get(t, "/documents/docs/doc/1", tc.headers...)
			assert.Equal(t, tc.status, status)
		})
	}

	// Health stays public.
	status, _ := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, status)
}

func TestDocumentQuery(t *testing.T) {
	query, args, err := documentQuery("docs", "doc", 7)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `doc` FROM `docs` WHERE (`rowid` = ?)", query)
	assert.Equal(t, []interface{}{int64(7)}, args)
}

func TestTableFilter(t *testing.T) {
	filter, err := NewTableFilter([]string{"users_*", "orders"})
	require.NoError(t, err)

	assert.True(t, filter.Match("users_archive"))
	assert.True(t, filter.Match("orders"))
	assert.False(t, filter.Match("orders_2024"))

	empty, err := NewTableFilter(nil)
	require.NoError(t, err)
	assert.False(t, empty.Match("anything"))

	_, err = NewTableFilter([]string{"[unclosed"})
	assert.Error(t, err)
}
