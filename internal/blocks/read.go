package blocks

import (
	"context"
	"errors"

	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/repo"
)

// ReadConfig — конфигурация блока read.
type ReadConfig struct {
	SourceName string `json:"source_name" validate:"required,excludesall=/\\"`
}

// ReadBlock загружает таблицу из хранилища. Входная таблица игнорируется.
type ReadBlock struct {
	store repo.TableStore
}

// NewReadBlock создаёт ReadBlock.
func NewReadBlock(store repo.TableStore) *ReadBlock {
	return &ReadBlock{store: store}
}

// Type возвращает тип блока.
func (b *ReadBlock) Type() domain.BlockType {
	return domain.BlockTypeRead
}

// Schema возвращает схему конфигурации.
func (b *ReadBlock) Schema() Schema {
	return Schema{
		Type:        domain.BlockTypeRead,
		Name:        "Read source",
		Description: "Load a table from a named source",
		Fields: []FieldSchema{
			{Name: "source_name", Type: "string", Required: true, Description: "Name of the source table, e.g. leads.csv"},
		},
	}
}

// Validate проверяет конфигурацию.
func (b *ReadBlock) Validate(config map[string]any) error {
	_, err := b.parseConfig(config)
	return err
}

func (b *ReadBlock) parseConfig(config map[string]any) (*ReadConfig, error) {
	cfg := &ReadConfig{}
	if err := decodeConfig(domain.BlockTypeRead, config, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply загружает таблицу source_name.
func (b *ReadBlock) Apply(ctx context.Context, req *Request) (*domain.Table, error) {
	cfg, err := b.parseConfig(req.Config)
	if err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, NewBlockError(req.BlockID, errors.New("no source store configured"))
	}

	req.progress(10)

	table, err := b.store.Load(ctx, cfg.SourceName)
	if err != nil {
		return nil, NewBlockError(req.BlockID, err)
	}

	req.progress(100)
	return table, nil
}
