package repo

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffname,age,active\nAcme 64,12,true\nOther,,false\nShort\n"

	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "active"}, table.Columns)
	want := []domain.Row{
		{"name": "Acme 64", "age": float64(12), "active": true},
		{"name": "Other", "age": nil, "active": false},
		{"name": "Short", "age": nil, "active": nil},
	}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,a\n1,2\n"))
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestWriteCSV(t *testing.T) {
	table, err := domain.NewTable([]string{"name", "score"}, []domain.Row{
		{"name": "Ann", "score": 1.5},
		{"name": "Bob", "score": nil},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	assert.Equal(t, "name,score\nAnn,1.5\nBob,\n", buf.String())
}

func TestCSVStore_SaveLoadList(t *testing.T) {
	ctx := context.Background()
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	table, err := domain.NewTable([]string{"name"}, []domain.Row{{"name": "Acme"}})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "leads.csv", table))

	loaded, err := store.Load(ctx, "leads.csv")
	require.NoError(t, err)
	if diff := cmp.Diff(table, loaded); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	sources, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "leads.csv", sources[0].Name)
	assert.Positive(t, sources[0].Size)
}

func TestCSVStore_NotFound(t *testing.T) {
	store, err := NewCSVStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", " ", ".", "..", "../etc/passwd", "a/b.csv", `a\b.csv`} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, "name %q", name)
	}
	assert.NoError(t, ValidateName("leads.csv"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	table, err := domain.NewTable([]string{"a"}, []domain.Row{{"a": "x"}})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "t", table))

	// Изменение исходной таблицы не влияет на сохранённую
	table.Rows[0]["a"] = "changed"

	loaded, err := store.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "x", loaded.Rows[0]["a"])

	_, err = store.Load(ctx, "other")
	require.ErrorIs(t, err, ErrNotFound)
}
