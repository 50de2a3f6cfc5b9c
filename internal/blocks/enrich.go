package blocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/remote"
	"github.com/shaiso/tableflow/internal/worker"
)

// DefaultEnrichPrefix — префикс новых колонок enrich.
const DefaultEnrichPrefix = "enriched_"

// EnrichField — поле, запрашиваемое у сервиса.
type EnrichField struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// EnrichConfig — конфигурация блока enrich.
type EnrichConfig struct {
	Struct         []EnrichField `json:"struct" validate:"required,min=1,unique=Name,dive"`
	ColumnPrefix   string        `json:"column_prefix"`
	NameColumn     string        `json:"name_column" validate:"required"`
	CompanyColumn  string        `json:"company_column" validate:"required"`
	LinkedinColumn string        `json:"linkedin_column" validate:"required"`
	MaxConcurrent  int           `json:"max_concurrent" validate:"min=0,max=64"`
}

// EnrichBlock запрашивает у сервиса поля для каждой строки и добавляет
// их новыми колонками <prefix><name>.
//
// Существующие колонки и порядок строк не меняются. Строка, для которой
// вызов не удался после всех повторов, остаётся с null в новых колонках.
type EnrichBlock struct {
	service    remote.Service
	dispatcher *worker.Dispatcher
}

// NewEnrichBlock создаёт EnrichBlock.
// Если dispatcher nil, используется Dispatcher с настройками по умолчанию.
func NewEnrichBlock(service remote.Service, dispatcher *worker.Dispatcher) *EnrichBlock {
	if dispatcher == nil {
		dispatcher = worker.New(worker.Config{})
	}
	return &EnrichBlock{service: service, dispatcher: dispatcher}
}

// Type возвращает тип блока.
func (b *EnrichBlock) Type() domain.BlockType {
	return domain.BlockTypeEnrich
}

// Schema возвращает схему конфигурации.
func (b *EnrichBlock) Schema() Schema {
	fields := []FieldSchema{
		{Name: "struct", Type: "struct_list", Required: true, Description: "Fields to request: [{name, description}]"},
		{Name: "column_prefix", Type: "string", Default: DefaultEnrichPrefix, Description: "Prefix of the new columns"},
	}
	return Schema{
		Type:        domain.BlockTypeEnrich,
		Name:        "Enrich lead",
		Description: "Request additional fields for every row from the enrichment service",
		Fields:      append(fields, leadFieldSchemas()...),
	}
}

// Validate проверяет конфигурацию.
func (b *EnrichBlock) Validate(config map[string]any) error {
	_, err := b.parseConfig(config)
	return err
}

func (b *EnrichBlock) parseConfig(config map[string]any) (*EnrichConfig, error) {
	cfg := &EnrichConfig{
		ColumnPrefix:   DefaultEnrichPrefix,
		NameColumn:     DefaultNameColumn,
		CompanyColumn:  DefaultCompanyColumn,
		LinkedinColumn: DefaultLinkedinColumn,
	}
	if err := decodeConfig(domain.BlockTypeEnrich, config, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply обогащает каждую строку входной таблицы.
func (b *EnrichBlock) Apply(ctx context.Context, req *Request) (*domain.Table, error) {
	cfg, err := b.parseConfig(req.Config)
	if err != nil {
		return nil, err
	}
	input, err := req.requireInput()
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(cfg.Struct))
	fields := make([]remote.Field, len(cfg.Struct))
	for i, f := range cfg.Struct {
		columns[i] = cfg.ColumnPrefix + f.Name
		fields[i] = remote.Field{Name: f.Name, Description: f.Description}
		if input.HasColumn(columns[i]) {
			return nil, NewBlockError(req.BlockID, fmt.Errorf("column %s already exists", columns[i]))
		}
	}

	out := input.WithColumns(columns...)
	if input.Len() == 0 {
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
		extra:    true,
	}
	leads := make([]remote.Lead, input.Len())
	for i, row := range input.Rows {
		leads[i] = leadFromRow(row, cols)
	}

	results, err := b.dispatcher.Dispatch(ctx, len(leads),
		func(ctx context.Context, i int) (map[string]any, error) {
			return b.service.Enrich(ctx, leads[i], fields)
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
		row := out.Rows[r.Index]
		for i, f := range cfg.Struct {
			row[columns[i]] = domain.NormalizeValue(r.Value[f.Name])
		}
	}

	return out, nil
}
