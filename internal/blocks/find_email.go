package blocks

import (
	"context"
	"errors"

	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/remote"
	"github.com/shaiso/tableflow/internal/worker"
)

// Значения по умолчанию для find_email.
const (
	DefaultEmailMode   = "PROFESSIONAL"
	DefaultEmailColumn = "found_email"
)

// FindEmailConfig — конфигурация блока find_email.
type FindEmailConfig struct {
	Mode           string `json:"mode" validate:"oneof=PROFESSIONAL PERSONAL"`
	OutputColumn   string `json:"output_column" validate:"required"`
	SkipExisting   bool   `json:"skip_existing"`
	NameColumn     string `json:"name_column" validate:"required"`
	CompanyColumn  string `json:"company_column" validate:"required"`
	LinkedinColumn string `json:"linkedin_column" validate:"required"`
	MaxConcurrent  int    `json:"max_concurrent" validate:"min=0,max=64"`
}

// FindEmailBlock ищет email для каждой строки и пишет его в output_column.
//
// При skip_existing строки с непустой колонкой email не отправляются
// в сервис: их email копируется в output_column.
type FindEmailBlock struct {
	service    remote.Service
	dispatcher *worker.Dispatcher
}

// NewFindEmailBlock создаёт FindEmailBlock.
// Если dispatcher nil, используется Dispatcher с настройками по умолчанию.
func NewFindEmailBlock(service remote.Service, dispatcher *worker.Dispatcher) *FindEmailBlock {
	if dispatcher == nil {
		dispatcher = worker.New(worker.Config{})
	}
	return &FindEmailBlock{service: service, dispatcher: dispatcher}
}

// Type возвращает тип блока.
func (b *FindEmailBlock) Type() domain.BlockType {
	return domain.BlockTypeFindEmail
}

// Schema возвращает схему конфигурации.
func (b *FindEmailBlock) Schema() Schema {
	fields := []FieldSchema{
		{Name: "mode", Type: "string", Default: DefaultEmailMode, Enum: []string{"PROFESSIONAL", "PERSONAL"}},
		{Name: "output_column", Type: "string", Default: DefaultEmailColumn, Description: "Column for the found email"},
		{Name: "skip_existing", Type: "boolean", Default: true, Description: "Copy the email column instead of calling the service"},
	}
	return Schema{
		Type:        domain.BlockTypeFindEmail,
		Name:        "Find email",
		Description: "Look up an email address for every row",
		Fields:      append(fields, leadFieldSchemas()...),
	}
}

// Validate проверяет конфигурацию.
func (b *FindEmailBlock) Validate(config map[string]any) error {
	_, err := b.parseConfig(config)
	return err
}

func (b *FindEmailBlock) parseConfig(config map[string]any) (*FindEmailConfig, error) {
	cfg := &FindEmailConfig{
		Mode:           DefaultEmailMode,
		OutputColumn:   DefaultEmailColumn,
		SkipExisting:   true,
		NameColumn:     DefaultNameColumn,
		CompanyColumn:  DefaultCompanyColumn,
		LinkedinColumn: DefaultLinkedinColumn,
	}
	if err := decodeConfig(domain.BlockTypeFindEmail, config, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply ищет email для строк входной таблицы.
func (b *FindEmailBlock) Apply(ctx context.Context, req *Request) (*domain.Table, error) {
	cfg, err := b.parseConfig(req.Config)
	if err != nil {
		return nil, err
	}
	input, err := req.requireInput()
	if err != nil {
		return nil, err
	}

	out := input.WithColumns(cfg.OutputColumn)

	// Строки, для которых нужен вызов сервиса
	pending := make([]int, 0, input.Len())
	for i, row := range out.Rows {
		if cfg.SkipExisting {
			if email := domain.FormatCell(row["email"]); email != "" {
				row[cfg.OutputColumn] = row["email"]
				continue
			}
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		req.progress(100)
		return out, nil
	}
	if b.service == nil {
		return nil, NewBlockError(req.BlockID, remote.ErrNotConfigured)
	}

	cols := leadColumns{
		name:     cfg.NameColumn,
		company:  cfg.CompanyColumn,
		linkedin: cfg.LinkedinColumn,
	}
	results, err := b.dispatcher.Dispatch(ctx, len(pending),
		func(ctx context.Context, k int) (map[string]any, error) {
			return b.service.FindEmail(ctx, leadFromRow(input.Rows[pending[k]], cols), cfg.Mode)
		},
		worker.Options{
			Concurrency: cfg.MaxConcurrent,
			OnProgress:  func(done, total int) { req.progress(percent(done, total)) },
			ShouldPause: req.PauseRequested,
		},
	)
	if err != nil {
		if errors.Is(err, ErrPaused) || ctx.Err() != nil {
			return nil, err
		}
		return nil, NewBlockError(req.BlockID, err)
	}

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if email := emailFromResult(r.Value); email != "" {
			out.Rows[pending[r.Index]][cfg.OutputColumn] = email
		}
	}

	return out, nil
}

// emailFromResult извлекает email из ответа сервиса: email, затем found_email.
func emailFromResult(result map[string]any) string {
	for _, key := range []string{"email", "found_email"} {
		if s, ok := result[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
