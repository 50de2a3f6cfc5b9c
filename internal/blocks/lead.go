package blocks

import (
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/remote"
)

// Колонки по умолчанию, из которых берутся данные лида.
const (
	DefaultNameColumn     = "name"
	DefaultCompanyColumn  = "company"
	DefaultLinkedinColumn = "linkedin"
	DefaultMaxConcurrent  = 10
	maxConcurrentLimit    = 64
)

// leadColumns — колонки строки, которые отправляются в сервис.
type leadColumns struct {
	name     string
	company  string
	linkedin string
	extra    bool // добавлять email и company_location
}

// leadFromRow собирает идентифицирующие поля строки.
// Пустые значения не отправляются.
func leadFromRow(row domain.Row, cols leadColumns) remote.Lead {
	lead := make(remote.Lead)
	put := func(key, column string) {
		if s := domain.FormatCell(row[column]); s != "" {
			lead[key] = s
		}
	}

	put("name", cols.name)
	put("company", cols.company)
	put("linkedin", cols.linkedin)

	if cols.extra {
		put("email", "email")
		put("location", "company_location")
	}
	return lead
}

// leadFieldSchemas — общие поля схемы для блоков на сервисе обогащения.
func leadFieldSchemas() []FieldSchema {
	return []FieldSchema{
		{Name: "name_column", Type: "string", Default: DefaultNameColumn, Description: "Column with the person's name"},
		{Name: "company_column", Type: "string", Default: DefaultCompanyColumn, Description: "Column with the company name"},
		{Name: "linkedin_column", Type: "string", Default: DefaultLinkedinColumn, Description: "Column with the LinkedIn URL"},
		{Name: "max_concurrent", Type: "number", Default: DefaultMaxConcurrent, Description: "Maximum concurrent remote calls"},
	}
}

// percent переводит done/total в проценты 0–100.
func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
