package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// BlockRunResponse — состояние блока внутри run.
type BlockRunResponse struct {
	BlockID     string `json:"block_id"`
	BlockType   string `json:"block_type"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// RunResponse — снимок run из API.
type RunResponse struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	Blocks            []BlockRunResponse `json:"blocks"`
	CurrentBlockIndex int                `json:"current_block_index"`
	IsPartial         bool               `json:"is_partial"`
	HasResult         bool               `json:"has_result"`
	ResultColumns     []string           `json:"result_columns,omitempty"`
	ResultRowCount    int                `json:"result_row_count"`
	ResultPreview     []map[string]any   `json:"result_preview,omitempty"`
	Error             string             `json:"error,omitempty"`
	CreatedAt         string             `json:"created_at"`
	StartedAt         string             `json:"started_at,omitempty"`
	FinishedAt        string             `json:"finished_at,omitempty"`
	DurationMs        int64              `json:"duration_ms,omitempty"`
}

// IsSettled возвращает true, если run больше не выполняется сам по себе
// (завершён или стоит на паузе).
func (r *RunResponse) IsSettled() bool {
	switch r.Status {
	case "completed", "failed", "paused":
		return true
	default:
		return false
	}
}

// SubmitRunResponse — ответ на submit.
type SubmitRunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ResultResponse — результат run.
type ResultResponse struct {
	Columns   []string         `json:"columns"`
	RowCount  int              `json:"row_count"`
	Rows      []map[string]any `json:"rows"`
	IsPartial bool             `json:"is_partial"`
}

// FieldSchemaResponse — поле конфигурации блока.
type FieldSchemaResponse struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// BlockSchemaResponse — схема типа блока.
type BlockSchemaResponse struct {
	Type        string                `json:"type"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Fields      []FieldSchemaResponse `json:"fields"`
}

// SourceResponse — метаданные источника.
type SourceResponse struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	UpdatedAt string `json:"updated_at"`
}

// PreviewResponse — первые строки источника.
type PreviewResponse struct {
	Name     string           `json:"name"`
	Columns  []string         `json:"columns"`
	RowCount int              `json:"row_count"`
	Rows     []map[string]any `json:"rows"`
}

// --- Request types ---

// BlockSpec — блок графа.
type BlockSpec struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge — ребро графа.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// SubmitRunRequest — запуск графа.
type SubmitRunRequest struct {
	Nodes []BlockSpec `json:"nodes"`
	Edges []Edge      `json:"edges"`
	Order []string    `json:"order,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		NodeID  string `json:"node_id,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для tableflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Blocks ---

// ListBlockTypes возвращает схемы блоков.
func (c *Client) ListBlockTypes() ([]BlockSchemaResponse, error) {
	var schemas []BlockSchemaResponse
	err := c.list("/api/v1/blocks", nil, &schemas)
	return schemas, err
}

// --- Runs ---

// ListRuns возвращает снимки runs. Пустой status — без фильтра.
func (c *Client) ListRuns(status string) ([]RunResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// SubmitRun отправляет граф на выполнение.
func (c *Client) SubmitRun(req SubmitRunRequest) (*SubmitRunResponse, error) {
	var resp SubmitRunResponse
	err := c.post("/api/v1/runs", req, &resp)
	return &resp, err
}

// GetRun возвращает снимок run.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// PauseRun запрашивает паузу.
func (c *Client) PauseRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/pause", nil, &run)
	return &run, err
}

// ResumeRun продолжает run после паузы.
func (c *Client) ResumeRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/resume", nil, &run)
	return &run, err
}

// DeleteRun удаляет run из реестра.
func (c *Client) DeleteRun(id string) error {
	return c.delete("/api/v1/runs/" + id)
}

// GetResult возвращает результат run в JSON.
func (c *Client) GetResult(id string) (*ResultResponse, error) {
	var result ResultResponse
	err := c.get("/api/v1/runs/"+id+"/result", &result)
	return &result, err
}

// DownloadResult копирует результат в формате format (csv, msgpack) в w.
func (c *Client) DownloadResult(id, format string, w io.Writer) error {
	params := url.Values{"format": {format}}
	return c.download("/api/v1/runs/"+id+"/result?"+params.Encode(), w)
}

// --- Sources ---

// ListSources возвращает сохранённые таблицы.
func (c *Client) ListSources() ([]SourceResponse, error) {
	var sources []SourceResponse
	err := c.list("/api/v1/sources", nil, &sources)
	return sources, err
}

// UploadSource загружает CSV под именем name.
func (c *Client) UploadSource(name string, csv io.Reader) (*PreviewResponse, error) {
	resp, err := c.doRaw(http.MethodPut, "/api/v1/sources/"+url.PathEscape(name), csv, "text/csv")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var preview PreviewResponse
	if err := c.decodeData(resp, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// DownloadSource копирует CSV источника в w.
func (c *Client) DownloadSource(name string, w io.Writer) error {
	return c.download("/api/v1/sources/"+url.PathEscape(name), w)
}

// PreviewSource возвращает первые rows строк источника.
func (c *Client) PreviewSource(name string, rows int) (*PreviewResponse, error) {
	params := url.Values{"rows": {strconv.Itoa(rows)}}
	var preview PreviewResponse
	err := c.get("/api/v1/sources/"+url.PathEscape(name)+"/preview?"+params.Encode(), &preview)
	return &preview, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) download(path string, w io.Writer) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeData(resp, result)
}

func (c *Client) decodeData(resp *http.Response, result any) error {
	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.doRaw(method, path, nil, "")
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doRaw(method, path, bytes.NewReader(data), "application/json")
}

func (c *Client) doRaw(method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if er.Error.NodeID != "" {
		return fmt.Errorf("%s: %s (block %s)", er.Error.Code, er.Error.Message, er.Error.NodeID)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
