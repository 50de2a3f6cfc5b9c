package blocks

import (
	"context"
	"errors"

	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/repo"
)

// DefaultSinkName — имя приёмника по умолчанию.
const DefaultSinkName = "output.csv"

// WriteConfig — конфигурация блока write.
type WriteConfig struct {
	SinkName string `json:"sink_name" validate:"required,excludesall=/\\"`
}

// WriteBlock сохраняет входную таблицу и передаёт её дальше без изменений.
type WriteBlock struct {
	store repo.TableStore
}

// NewWriteBlock создаёт WriteBlock.
func NewWriteBlock(store repo.TableStore) *WriteBlock {
	return &WriteBlock{store: store}
}

// Type возвращает тип блока.
func (b *WriteBlock) Type() domain.BlockType {
	return domain.BlockTypeWrite
}

// Schema возвращает схему конфигурации.
func (b *WriteBlock) Schema() Schema {
	return Schema{
		Type:        domain.BlockTypeWrite,
		Name:        "Write sink",
		Description: "Persist the table under a name and pass it through unchanged",
		Fields: []FieldSchema{
			{Name: "sink_name", Type: "string", Default: DefaultSinkName, Description: "Name of the output table"},
		},
	}
}

// Validate проверяет конфигурацию.
func (b *WriteBlock) Validate(config map[string]any) error {
	_, err := b.parseConfig(config)
	return err
}

func (b *WriteBlock) parseConfig(config map[string]any) (*WriteConfig, error) {
	cfg := &WriteConfig{SinkName: DefaultSinkName}
	if err := decodeConfig(domain.BlockTypeWrite, config, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply сохраняет таблицу в sink_name.
func (b *WriteBlock) Apply(ctx context.Context, req *Request) (*domain.Table, error) {
	cfg, err := b.parseConfig(req.Config)
	if err != nil {
		return nil, err
	}
	input, err := req.requireInput()
	if err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, NewBlockError(req.BlockID, errors.New("no sink store configured"))
	}

	req.progress(10)

	if err := b.store.Save(ctx, cfg.SinkName, input); err != nil {
		return nil, NewBlockError(req.BlockID, err)
	}

	req.progress(100)
	return input.Clone(), nil
}
