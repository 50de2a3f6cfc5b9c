package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tableflow/internal/blocks"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/orchestrator"
	"github.com/shaiso/tableflow/internal/repo"
	"github.com/shaiso/tableflow/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const peopleCSV = "name,city\nAnna,Berlin\nBoris,Paris\nClara,Berlin\n"

type testServer struct {
	srv   *httptest.Server
	store *repo.MemoryStore
	orch  *orchestrator.Orchestrator
}

func newTestServer(t *testing.T, withStore bool) *testServer {
	t.Helper()

	store := repo.NewMemoryStore()
	table, err := repo.ReadCSV(strings.NewReader(peopleCSV))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "people.csv", table))

	orch := orchestrator.New(orchestrator.Config{
		Blocks: blocks.DefaultRegistry(blocks.Deps{Store: store}),
		Logger: telemetry.Discard(),
	})
	t.Cleanup(orch.Stop)

	cfg := Config{Orchestrator: orch, Logger: telemetry.Discard()}
	if withStore {
		cfg.Store = store
	}

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: store, orch: orch}
}

func (s *testServer) do(t *testing.T, method, path string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type runEnvelope struct {
	Data RunResponse `json:"data"`
}

type errorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

func (s *testServer) submit(t *testing.T, body string) uuid.UUID {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/runs", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[struct {
		Data SubmitRunResponse `json:"data"`
	}](t, resp)
	return out.Data.ID
}

func (s *testServer) waitStatus(t *testing.T, id uuid.UUID, want domain.RunStatus) RunResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp := s.do(t, http.MethodGet, "/api/v1/runs/"+id.String(), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		run := decode[runEnvelope](t, resp).Data
		if run.Status == want {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s: status %s, want %s", id, run.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

const berlinChain = `{"blocks": [
	{"id": "src", "type": "read", "config": {"source_name": "people.csv"}},
	{"id": "only_berlin", "type": "filter", "config": {"column": "city", "operator": "equals", "value": "Berlin"}},
	{"id": "out", "type": "write", "config": {"sink_name": "berlin.csv"}}
]}`

func TestSubmitRun_CompletesAndExportsResult(t *testing.T) {
	s := newTestServer(t, true)

	id := s.submit(t, berlinChain)
	run := s.waitStatus(t, id, domain.RunStatusCompleted)

	assert.Equal(t, 3, run.CurrentBlockIndex)
	assert.False(t, run.IsPartial)
	assert.Equal(t, 2, run.ResultRowCount)
	for _, b := range run.Blocks {
		assert.Equal(t, domain.BlockStatusCompleted, b.Status, b.BlockID)
		assert.Equal(t, 100, b.Progress, b.BlockID)
	}

	t.Run("json", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/v1/runs/"+id.String()+"/result", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "false", resp.Header.Get("X-Result-Partial"))

		out := decode[struct {
			Data domain.Result `json:"data"`
		}](t, resp)
		assert.Equal(t, []string{"name", "city"}, out.Data.Columns)
		assert.Equal(t, 2, out.Data.RowCount)
		assert.Equal(t, "Anna", out.Data.Rows[0]["name"])
		assert.Equal(t, "Clara", out.Data.Rows[1]["name"])
	})

	t.Run("csv", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/v1/runs/"+id.String()+"/result?format=csv", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

		var buf bytes.Buffer
		_, err := buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "name,city\nAnna,Berlin\nClara,Berlin\n", buf.String())
	})

	t.Run("msgpack", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/v1/runs/"+id.String()+"/result?format=msgpack", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out domain.Result
		require.NoError(t, msgpack.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, 2, out.RowCount)
		assert.False(t, out.IsPartial)
	})

	t.Run("unsupported format", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/v1/runs/"+id.String()+"/result?format=xml", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("sink written", func(t *testing.T) {
		table, err := s.store.Load(context.Background(), "berlin.csv")
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
	})
}

func TestSubmitRun_Errors(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   ErrorCode
		wantNode   bool
	}{
		{
			name:       "bad body",
			body:       `{"nodes": [`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "empty graph",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidGraph,
		},
		{
			name: "cycle",
			body: `{"nodes": [
				{"id": "a", "type": "filter", "config": {"column": "x"}},
				{"id": "b", "type": "filter", "config": {"column": "x"}}
			], "edges": [{"source": "a", "target": "b"}, {"source": "b", "target": "a"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidGraph,
			wantNode:   true,
		},
		{
			name:       "unknown block type",
			body:       `{"blocks": [{"id": "a", "type": "teleport"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidGraph,
			wantNode:   true,
		},
		{
			name:       "invalid config",
			body:       `{"blocks": [{"id": "a", "type": "filter", "config": {"operator": "equals"}}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			out := decode[errorEnvelope](t, resp)
			assert.Equal(t, tt.wantCode, out.Error.Code)
			if tt.wantNode {
				assert.NotEmpty(t, out.Error.NodeID)
			}
		})
	}

	assert.Empty(t, s.orch.List(), "rejected graphs must not create runs")
}

func TestRunEndpoints_NotFound(t *testing.T) {
	s := newTestServer(t, true)
	missing := uuid.New().String()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/runs/" + missing},
		{http.MethodGet, "/api/v1/runs/" + missing + "/result"},
		{http.MethodPost, "/api/v1/runs/" + missing + "/pause"},
		{http.MethodPost, "/api/v1/runs/" + missing + "/resume"},
		{http.MethodDelete, "/api/v1/runs/" + missing},
	} {
		resp := s.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tc.method+" "+tc.path)
	}

	resp := s.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunLifecycle_TerminalRun(t *testing.T) {
	s := newTestServer(t, true)

	id := s.submit(t, berlinChain)
	s.waitStatus(t, id, domain.RunStatusCompleted)

	resp := s.do(t, http.MethodPost, "/api/v1/runs/"+id.String()+"/pause", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidState, decode[errorEnvelope](t, resp).Error.Code)

	resp = s.do(t, http.MethodPost, "/api/v1/runs/"+id.String()+"/resume", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/runs?status=completed", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data  []RunResponse `json:"data"`
		Total int           `json:"total"`
	}](t, resp)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, id, list.Data[0].ID)

	resp = s.do(t, http.MethodGet, "/api/v1/runs?status=failed", "")
	assert.Equal(t, 0, decode[ListResponse](t, resp).Total)

	resp = s.do(t, http.MethodDelete, "/api/v1/runs/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/runs/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunResult_FailedRunIsPartial(t *testing.T) {
	s := newTestServer(t, true)

	id := s.submit(t, `{"blocks": [
		{"id": "src", "type": "read", "config": {"source_name": "people.csv"}},
		{"id": "bad", "type": "read", "config": {"source_name": "missing.csv"}}
	]}`)
	run := s.waitStatus(t, id, domain.RunStatusFailed)
	assert.True(t, run.IsPartial)
	assert.NotEmpty(t, run.Error)

	resp := s.do(t, http.MethodGet, "/api/v1/runs/"+id.String()+"/result", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Result-Partial"))
	out := decode[struct {
		Data domain.Result `json:"data"`
	}](t, resp)
	assert.Equal(t, 3, out.Data.RowCount)
}

func TestListBlockTypes(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.do(t, http.MethodGet, "/api/v1/blocks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[struct {
		Data  []blocks.Schema `json:"data"`
		Total int             `json:"total"`
	}](t, resp)
	require.Equal(t, 5, out.Total)

	types := make([]domain.BlockType, len(out.Data))
	for i, schema := range out.Data {
		types[i] = schema.Type
	}
	assert.Equal(t, []domain.BlockType{
		domain.BlockTypeEnrich,
		domain.BlockTypeFilter,
		domain.BlockTypeFindEmail,
		domain.BlockTypeRead,
		domain.BlockTypeWrite,
	}, types)
}

func TestSources(t *testing.T) {
	s := newTestServer(t, true)

	resp := s.do(t, http.MethodPut, "/api/v1/sources/leads.csv", "company,domain\nAcme,acme.io\n")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data []SourceResponse `json:"data"`
	}](t, resp)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "leads.csv", list.Data[0].Name)
	assert.Equal(t, "people.csv", list.Data[1].Name)

	resp = s.do(t, http.MethodGet, "/api/v1/sources/people.csv/preview?rows=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview := decode[struct {
		Data PreviewResponse `json:"data"`
	}](t, resp)
	assert.Equal(t, 3, preview.Data.RowCount)
	require.Len(t, preview.Data.Rows, 1)
	assert.Equal(t, "Anna", preview.Data.Rows[0]["name"])

	resp = s.do(t, http.MethodGet, "/api/v1/sources/leads.csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "company,domain\nAcme,acme.io\n", buf.String())

	resp = s.do(t, http.MethodGet, "/api/v1/sources/nope.csv", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/sources/people.csv/preview?rows=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSources_NotConfigured(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.do(t, http.MethodGet, "/api/v1/sources", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", out["status"])
}

func TestRecovery(t *testing.T) {
	h := Recovery(telemetry.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogging_RequestID(t *testing.T) {
	var fromCtx bool
	h := Logging(telemetry.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = telemetry.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
		assert.NoError(t, err)
		assert.True(t, fromCtx)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	})
}
