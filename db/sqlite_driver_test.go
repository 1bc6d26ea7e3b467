package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFuncs_SampleDocument(t *testing.T) {
	db := openTestDB(t, newTestCodec(t))

	tests := []struct {
		name     string
		query    string
		expected interface{}
	}{
		{"get string", "SELECT bson_get(bson_document(), 'name')", "abc"},
		{"get int", "SELECT bson_get(bson_document(), 'age')", int64(43)},
		{"get array element", "SELECT bson_get(bson_document(), 'phones.1')", "0002"},
		{"get array", "SELECT bson_get(bson_document(), 'phones')", `["0001","0002"]`},
		{"get missing", "SELECT bson_get(bson_document(), 'email')", nil},
		{"get null path", "SELECT bson_get(bson_document(), NULL)", nil},
		{"typeof int", "SELECT bson_typeof(bson_document(), 'age')", "int"},
		{"typeof array", "SELECT bson_typeof(bson_document(), 'phones')", "array"},
		{"typeof root", "SELECT bson_typeof(bson_document(), '')", "document"},
		{"to json", "SELECT bson_to_json(bson_document())", `{"name":"abc","age":43,"phones":["0001","0002"]}`},
		{"size", "SELECT bson_size(bson_document())", int64(65)},
		{"repr", "SELECT bson_repr(bson_document())", "inline"},
		{"valid", "SELECT bson_valid(bson_document())", int64(1)},
		{"null document", "SELECT bson_to_json(NULL)", nil},
		{"null valid", "SELECT bson_valid(NULL)", nil},
		{"regexp", "SELECT bson_get(bson_document(), 'name') REGEXP '^ab'", int64(1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var result interface{}
			if err := db.QueryRow(tc.query).Scan(&result); err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if b, ok := result.([]byte); ok {
				result = string(b)
			}
			if result != tc.expected {
				t.Errorf("%s: expected %v (%T), got %v (%T)", tc.query, tc.expected, tc.expected, result, result)
			}
		})
	}
}

func TestDocumentFuncs_FromJSON(t *testing.T) {
	db := openTestDB(t, newTestCodec(t))

	var got int64
	err := db.QueryRow(`SELECT bson_get(bson_from_json('{"a": {"b": [1, 2]}}'), 'a.b.1')`).Scan(&got)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	var typ string
	err = db.QueryRow(`SELECT bson_typeof(bson_from_json('{"n": 5000000000}'), 'n')`).Scan(&typ)
	require.NoError(t, err)
	assert.Equal(t, "long", typ)

	err = db.QueryRow(`SELECT bson_from_json('[1, 2]')`).Scan(&typ)
	assert.Error(t, err)
}

func TestDocumentFuncs_CorruptDatum(t *testing.T) {
	db := openTestDB(t, newTestCodec(t))

	_, err := db.Exec("CREATE TABLE docs (id INTEGER PRIMARY KEY, doc bson)")
	require.NoError(t, err)
	// Inline header, declared length 6 but only 5 bytes follow.
	_, err = db.Exec("INSERT INTO docs (id, doc) VALUES (1, X'000600000000')")
	require.NoError(t, err)
	// Unknown header byte.
	_, err = db.Exec("INSERT INTO docs (id, doc) VALUES (2, X'7F')")
	require.NoError(t, err)

	for _, id := range []int{1, 2} {
		var name interface{}
		err = db.QueryRow("SELECT bson_get(doc, 'name') FROM docs WHERE id = ?", id).Scan(&name)
		assert.Error(t, err, "row %d", id)

		var valid int64
		require.NoError(t, db.QueryRow("SELECT bson_valid(doc) FROM docs WHERE id = ?", id).Scan(&valid))
		assert.Equal(t, int64(0), valid, "row %d", id)
	}

	// The connection stays usable after a failed statement.
	var name string
	require.NoError(t, db.QueryRow("SELECT bson_get(bson_document(), 'name')").Scan(&name))
	assert.Equal(t, "abc", name)
}

func TestDocumentFuncs_LargeDocuments(t *testing.T) {
	codec := newTestCodec(t)
	db := openTestDB(t, codec)

	_, err := db.Exec("CREATE TABLE docs (id INTEGER PRIMARY KEY, doc bson)")
	require.NoError(t, err)

	text := make([]byte, 0, 6000)
	for len(text) < 6000 {
		text = append(text, "the quick brown fox "...)
	}
	_, err = db.Exec(`INSERT INTO docs (id, doc) VALUES (1, bson_from_json(json_object('text', ?)))`, string(text))
	require.NoError(t, err)

	var repr string
	var size int64
	require.NoError(t, db.QueryRow("SELECT bson_repr(doc), bson_size(doc) FROM docs WHERE id = 1").Scan(&repr, &size))
	assert.Equal(t, "compressed", repr)
	assert.Greater(t, size, int64(6000))
	assert.Equal(t, int64(0), codec.Toaster.Outstanding())
}

func TestDocumentFuncs_Deterministic(t *testing.T) {
	db := openTestDB(t, newTestCodec(t))

	// SQLite only accepts deterministic functions in generated columns.
	_, err := db.Exec(`CREATE TABLE gen (
		doc bson,
		sample bson GENERATED ALWAYS AS (bson_document()),
		name TEXT GENERATED ALWAYS AS (bson_get(bson_document(), 'name')),
		kind TEXT GENERATED ALWAYS AS (bson_typeof(doc, 'a')),
		ok INTEGER GENERATED ALWAYS AS (bson_valid(doc)),
		size INTEGER GENERATED ALWAYS AS (bson_size(doc)),
		repr TEXT GENERATED ALWAYS AS (bson_repr(doc)),
		json TEXT GENERATED ALWAYS AS (bson_to_json(bson_from_json('{"k": 1}')))
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO gen (doc) VALUES (bson_from_json('{"a": "x"}'))`)
	require.NoError(t, err)

	var same int64
	var name, kind, json string
	err = db.QueryRow("SELECT sample = bson_document(), name, kind, json FROM gen").Scan(&same, &name, &kind, &json)
	require.NoError(t, err)
	assert.Equal(t, int64(1), same)
	assert.Equal(t, "abc", name)
	assert.Equal(t, "string", kind)
	assert.Equal(t, `{"k":1}`, json)
}

func TestRegisterDriver_Duplicate(t *testing.T) {
	codec := newTestCodec(t)
	require.NoError(t, RegisterDriver("sqlite3_bson_duplicate", codec))
	assert.Error(t, RegisterDriver("sqlite3_bson_duplicate", codec))
}

func TestRegexpBasicMatch(t *testing.T) {
	db := openTestDB(t, NewCodec(nil))

	tests := []struct {
		name     string
		text     string
		pattern  string
		expected bool
	}{
		{"prefix match", "hello", "^h", true},
		{"prefix no match", "hello", "^a", false},
		{"digits", "user123", "[0-9]+", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var result bool
			if err := db.QueryRow("SELECT ? REGEXP ?", tc.text, tc.pattern).Scan(&result); err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}
