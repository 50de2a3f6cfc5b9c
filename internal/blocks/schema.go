package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shaiso/tableflow/internal/domain"
)

// Schema — описание блока для listBlockTypes.
type Schema struct {
	Type        domain.BlockType `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Fields      []FieldSchema    `json:"fields"`
}

// FieldSchema — поле конфигурации блока.
type FieldSchema struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, number, boolean, any, struct_list
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// validate — валидатор конфигураций. Имена полей берутся из json-тегов.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// decodeConfig раскладывает конфигурацию в типизированную структуру dst
// (в которой уже выставлены значения по умолчанию) и валидирует её.
func decodeConfig(blockType domain.BlockType, raw map[string]any, dst any) error {
	if len(raw) > 0 {
		data, err := json.Marshal(raw)
		if err != nil {
			return &ConfigError{BlockType: blockType, Message: err.Error()}
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return &ConfigError{BlockType: blockType, Field: jsonErrorField(err), Message: err.Error()}
		}
	}

	if err := validate.Struct(dst); err != nil {
		return formatValidationError(blockType, err)
	}
	return nil
}

// jsonErrorField извлекает имя поля из ошибки декодирования.
func jsonErrorField(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Field
	}
	return ""
}

// formatValidationError превращает первую ошибку валидатора в ConfigError.
func formatValidationError(blockType domain.BlockType, err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return &ConfigError{BlockType: blockType, Message: err.Error()}
	}

	// Namespace: "FilterConfig.column", "EnrichConfig.struct[0].name"
	fe := vErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return &ConfigError{
		BlockType: blockType,
		Field:     field,
		Message:   validationMessage(fe),
	}
}

// validationMessage возвращает читаемое сообщение об ошибке поля.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "excludesall":
		return "must be a plain name without path separators"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}
