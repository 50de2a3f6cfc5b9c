package blocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/remote"
	"github.com/shaiso/tableflow/internal/repo"
	"github.com/shaiso/tableflow/internal/telemetry"
	"github.com/shaiso/tableflow/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService — remote.Service для тестов.
type fakeService struct {
	mu     sync.Mutex
	leads  []remote.Lead
	calls  atomic.Int32
	enrich func(lead remote.Lead) (map[string]any, error)
	find   func(lead remote.Lead) (map[string]any, error)
}

func (f *fakeService) Enrich(ctx context.Context, lead remote.Lead, fields []remote.Field) (map[string]any, error) {
	f.record(lead)
	return f.enrich(lead)
}

func (f *fakeService) FindEmail(ctx context.Context, lead remote.Lead, mode string) (map[string]any, error) {
	f.record(lead)
	return f.find(lead)
}

func (f *fakeService) record(lead remote.Lead) {
	f.calls.Add(1)
	f.mu.Lock()
	f.leads = append(f.leads, lead)
	f.mu.Unlock()
}

func testDispatcher() *worker.Dispatcher {
	return worker.New(worker.Config{
		Concurrency: 4,
		Retry:       worker.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond},
		Logger:      telemetry.Discard(),
	})
}

func mustTable(t *testing.T, columns []string, rows ...domain.Row) *domain.Table {
	t.Helper()
	table, err := domain.NewTable(columns, rows)
	require.NoError(t, err)
	return table
}

func TestFilter_ContainsPreservesOrder(t *testing.T) {
	input := mustTable(t, []string{"name"}, domain.Row{"name": "Acme 64"}, domain.Row{"name": "Other"})

	out, err := NewFilterBlock().Apply(context.Background(), &Request{
		BlockID: "f",
		Config:  map[string]any{"column": "name", "operator": "contains", "value": "64"},
		Input:   input,
	})
	require.NoError(t, err)

	want := []domain.Row{{"name": "Acme 64"}}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, input.Len(), "input must not be modified")
}

func TestFilter_Operators(t *testing.T) {
	input := mustTable(t, []string{"name", "score", "active"},
		domain.Row{"name": "Ann", "score": 10, "active": true},
		domain.Row{"name": "bob", "score": "25", "active": false},
		domain.Row{"name": "Eve", "score": nil, "active": nil},
		domain.Row{"name": "Zed", "score": "n/a", "active": "true"},
	)

	names := func(tbl *domain.Table) []string {
		out := make([]string, 0, tbl.Len())
		for _, r := range tbl.Rows {
			out = append(out, r["name"].(string))
		}
		return out
	}

	tests := []struct {
		name   string
		config map[string]any
		want   []string
	}{
		{name: "contains case-insensitive", config: map[string]any{"column": "name", "operator": "contains", "value": "B"}, want: []string{"bob"}},
		{name: "contains case-sensitive", config: map[string]any{"column": "name", "operator": "contains", "value": "B", "case_sensitive": true}, want: []string{}},
		{name: "default operator is contains", config: map[string]any{"column": "name", "value": "e"}, want: []string{"Eve", "Zed"}},
		{name: "equals number", config: map[string]any{"column": "score", "operator": "equals", "value": 25}, want: []string{"bob"}},
		{name: "equals string ignores case", config: map[string]any{"column": "name", "operator": "equals", "value": "ANN"}, want: []string{"Ann"}},
		{name: "not_equals skips null and incompatible", config: map[string]any{"column": "score", "operator": "not_equals", "value": 10}, want: []string{"bob"}},
		{name: "gt numeric", config: map[string]any{"column": "score", "operator": "gt", "value": 15}, want: []string{"bob"}},
		{name: "lt alias", config: map[string]any{"column": "score", "operator": "less_than", "value": 15}, want: []string{"Ann"}},
		{name: "is_true", config: map[string]any{"column": "active", "operator": "is_true"}, want: []string{"Ann", "Zed"}},
		{name: "is_false", config: map[string]any{"column": "active", "operator": "is_false"}, want: []string{"bob"}},
		{name: "is_null", config: map[string]any{"column": "score", "operator": "is_null"}, want: []string{"Eve"}},
		{name: "missing column yields empty table", config: map[string]any{"column": "nope", "operator": "is_not_null"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewFilterBlock().Apply(context.Background(), &Request{BlockID: "f", Config: tt.config, Input: input})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(out))
			assert.Equal(t, input.Columns, out.Columns)
		})
	}
}

func TestFilter_InvalidConfig(t *testing.T) {
	block := NewFilterBlock()

	err := block.Validate(map[string]any{"operator": "contains"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "column", cfgErr.Field)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	err = block.Validate(map[string]any{"column": "a", "operator": "like"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "operator", cfgErr.Field)
}

func TestFilter_MissingInput(t *testing.T) {
	_, err := NewFilterBlock().Apply(context.Background(), &Request{
		BlockID: "f",
		Config:  map[string]any{"column": "a"},
	})
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, ErrBlockFailed)
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore()
	source := mustTable(t, []string{"name"}, domain.Row{"name": "Ann"})
	require.NoError(t, store.Save(ctx, "leads.csv", source))

	var progress []int
	read := NewReadBlock(store)
	table, err := read.Apply(ctx, &Request{
		BlockID:    "read",
		Config:     map[string]any{"source_name": "leads.csv"},
		OnProgress: func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 100}, progress)
	if diff := cmp.Diff(source, table); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	write := NewWriteBlock(store)
	out, err := write.Apply(ctx, &Request{BlockID: "write", Input: table})
	require.NoError(t, err)
	if diff := cmp.Diff(table, out); diff != "" {
		t.Errorf("write must pass the table through (-want +got):\n%s", diff)
	}

	saved, err := store.Load(ctx, DefaultSinkName)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Len())
}

func TestRead_NotFoundIsBlockError(t *testing.T) {
	_, err := NewReadBlock(repo.NewMemoryStore()).Apply(context.Background(), &Request{
		BlockID: "read",
		Config:  map[string]any{"source_name": "missing.csv"},
	})

	var blockErr *BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, "read", blockErr.BlockID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRead_RequiresSourceName(t *testing.T) {
	err := NewReadBlock(nil).Validate(map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	err = NewReadBlock(nil).Validate(map[string]any{"source_name": "../secret.csv"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEnrich_AppendsColumnsAndKeepsFailedRows(t *testing.T) {
	service := &fakeService{
		enrich: func(lead remote.Lead) (map[string]any, error) {
			if lead["name"] == "Bob" {
				return nil, errors.New("no match")
			}
			return map[string]any{"title": "CTO of " + lead["company"].(string), "ignored": 1}, nil
		},
	}

	input := mustTable(t, []string{"name", "company", "company_location"},
		domain.Row{"name": "Ann", "company": "Acme", "company_location": "Berlin"},
		domain.Row{"name": "Bob", "company": "Beta"},
		domain.Row{"name": "Cid", "company": "Core"},
	)

	var lastProgress atomic.Int32
	block := NewEnrichBlock(service, testDispatcher())
	out, err := block.Apply(context.Background(), &Request{
		BlockID:    "enrich",
		Config:     map[string]any{"struct": []any{map[string]any{"name": "title", "description": "job title"}}},
		Input:      input,
		OnProgress: func(p int) { lastProgress.Store(int32(p)) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "company", "company_location", "enriched_title"}, out.Columns)
	want := []domain.Row{
		{"name": "Ann", "company": "Acme", "company_location": "Berlin", "enriched_title": "CTO of Acme"},
		{"name": "Bob", "company": "Beta", "company_location": nil, "enriched_title": nil},
		{"name": "Cid", "company": "Core", "company_location": nil, "enriched_title": "CTO of Core"},
	}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.EqualValues(t, 100, lastProgress.Load())

	// Bob: 2 попытки, остальные по одной
	assert.EqualValues(t, 4, service.calls.Load())

	// Дополнительный контекст лида
	service.mu.Lock()
	defer service.mu.Unlock()
	found := false
	for _, lead := range service.leads {
		if lead["name"] == "Ann" {
			found = true
			assert.Equal(t, "Berlin", lead["location"])
		}
	}
	assert.True(t, found)
}

func TestEnrich_ExistingColumnIsBlockError(t *testing.T) {
	input := mustTable(t, []string{"name", "enriched_title"}, domain.Row{"name": "Ann"})

	_, err := NewEnrichBlock(&fakeService{}, testDispatcher()).Apply(context.Background(), &Request{
		BlockID: "enrich",
		Config:  map[string]any{"struct": []any{map[string]any{"name": "title"}}},
		Input:   input,
	})
	assert.ErrorIs(t, err, ErrBlockFailed)
}

func TestEnrich_EmptyInput(t *testing.T) {
	input := mustTable(t, []string{"name"})

	out, err := NewEnrichBlock(nil, testDispatcher()).Apply(context.Background(), &Request{
		BlockID: "enrich",
		Config:  map[string]any{"struct": []any{map[string]any{"name": "title"}}},
		Input:   input,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "enriched_title"}, out.Columns)
	assert.Equal(t, 0, out.Len())
}

func TestEnrich_ConfigValidation(t *testing.T) {
	block := NewEnrichBlock(nil, nil)

	tests := []struct {
		name   string
		config map[string]any
		field  string
	}{
		{name: "missing struct", config: map[string]any{}, field: "struct"},
		{name: "empty struct", config: map[string]any{"struct": []any{}}, field: "struct"},
		{name: "field without name", config: map[string]any{"struct": []any{map[string]any{"description": "x"}}}, field: "struct[0].name"},
		{name: "duplicate names", config: map[string]any{"struct": []any{map[string]any{"name": "a"}, map[string]any{"name": "a"}}}, field: "struct"},
		{name: "concurrency too high", config: map[string]any{"struct": []any{map[string]any{"name": "a"}}, "max_concurrent": 1000}, field: "max_concurrent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := block.Validate(tt.config)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestEnrich_PauseInterruptsBlock(t *testing.T) {
	var pause atomic.Bool
	service := &fakeService{
		enrich: func(lead remote.Lead) (map[string]any, error) {
			pause.Store(true)
			return map[string]any{"title": "x"}, nil
		},
	}

	rows := make([]domain.Row, 0, 40)
	for i := 0; i < 40; i++ {
		rows = append(rows, domain.Row{"name": "lead"})
	}
	input := mustTable(t, []string{"name"}, rows...)

	dispatcher := worker.New(worker.Config{Concurrency: 1, Logger: telemetry.Discard()})
	_, err := NewEnrichBlock(service, dispatcher).Apply(context.Background(), &Request{
		BlockID:        "enrich",
		Config:         map[string]any{"struct": []any{map[string]any{"name": "title"}}},
		Input:          input,
		PauseRequested: pause.Load,
	})
	require.ErrorIs(t, err, ErrPaused)
	assert.Less(t, service.calls.Load(), int32(40))
}

func TestFindEmail(t *testing.T) {
	service := &fakeService{
		find: func(lead remote.Lead) (map[string]any, error) {
			switch lead["name"] {
			case "Ann":
				return map[string]any{"email": "ann@acme.io"}, nil
			case "Bob":
				return map[string]any{"found_email": "bob@beta.io"}, nil
			default:
				return map[string]any{}, nil
			}
		},
	}

	input := mustTable(t, []string{"name", "email"},
		domain.Row{"name": "Ann"},
		domain.Row{"name": "Bob", "email": ""},
		domain.Row{"name": "Cid", "email": "cid@core.io"},
		domain.Row{"name": "Dan"},
	)

	out, err := NewFindEmailBlock(service, testDispatcher()).Apply(context.Background(), &Request{
		BlockID: "find",
		Input:   input,
	})
	require.NoError(t, err)

	got := make([]any, 0, out.Len())
	for _, r := range out.Rows {
		got = append(got, r[DefaultEmailColumn])
	}
	assert.Equal(t, []any{"ann@acme.io", "bob@beta.io", "cid@core.io", nil}, got)
	assert.EqualValues(t, 3, service.calls.Load(), "existing email must not be looked up")
}

func TestFindEmail_InvalidMode(t *testing.T) {
	err := NewFindEmailBlock(nil, nil).Validate(map[string]any{"mode": "ANY"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "mode", cfgErr.Field)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(Deps{Store: repo.NewMemoryStore()})

	assert.Equal(t, []domain.BlockType{
		domain.BlockTypeEnrich,
		domain.BlockTypeFilter,
		domain.BlockTypeFindEmail,
		domain.BlockTypeRead,
		domain.BlockTypeWrite,
	}, r.Types())

	schemas := r.Schemas()
	require.Len(t, schemas, 5)
	assert.Equal(t, domain.BlockTypeEnrich, schemas[0].Type)

	_, err := r.Get("http")
	assert.ErrorIs(t, err, ErrBlockNotFound)

	err = r.ValidateSpec(domain.BlockSpec{ID: "f", Type: domain.BlockTypeFilter, Config: map[string]any{}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
