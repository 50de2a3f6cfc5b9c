package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shaiso/tableflow/internal/domain"
)

// ReadCSV читает таблицу из CSV. Первая строка — заголовок.
// Типы значений восстанавливаются через domain.ParseCell.
func ReadCSV(r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.EmptyTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidData, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([]domain.Row, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}

		row := make(domain.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = domain.ParseCell(record[i])
			}
		}
		rows = append(rows, row)
	}

	table, err := domain.NewTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return table, nil
}

// WriteCSV записывает таблицу в CSV с заголовком. nil пишется пустой строкой.
func WriteCSV(w io.Writer, table *domain.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(table.Columns); err != nil {
		return err
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = domain.FormatCell(row[col])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
