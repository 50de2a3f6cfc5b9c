// Package graphfile загружает граф workflow из файла (.json или .hcl).
//
// JSON повторяет тело POST /api/v1/runs. HCL описывает блоки и рёбра:
//
//	block "read" "load" {
//	  config = { source_name = "leads.csv" }
//	}
//	block "filter" "only_64" {
//	  config = { column = "name", operator = "contains", value = "64" }
//	}
//	edge {
//	  source = "load"
//	  target = "only_64"
//	}
//
// Файл без рёбер задаёт цепочку в порядке объявления блоков.
package graphfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/tableflow/internal/domain"
)

// ErrUnsupportedFormat — расширение файла не .json и не .hcl.
var ErrUnsupportedFormat = errors.New("unsupported workflow file format")

// Workflow — граф из файла и необязательный порядок выполнения.
type Workflow struct {
	Graph domain.Graph
	Order []string
}

// LoadFile читает и разбирает файл workflow по расширению.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return Parse(data, path)
}

// Parse разбирает содержимое файла. filename определяет формат
// и используется в сообщениях об ошибках.
func Parse(data []byte, filename string) (*Workflow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return parseJSON(data, filename)
	case ".hcl":
		return parseHCL(data, filename)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// jsonFile — формат .json.
type jsonFile struct {
	Nodes  []domain.BlockSpec `json:"nodes"`
	Edges  []domain.Edge      `json:"edges"`
	Blocks []domain.BlockSpec `json:"blocks"`
	Order  []string           `json:"order"`
}

func parseJSON(data []byte, filename string) (*Workflow, error) {
	var f jsonFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode JSON file %s: %w", filename, err)
	}

	if len(f.Nodes) > 0 && len(f.Blocks) > 0 {
		return nil, fmt.Errorf("%s: use either nodes or blocks, not both", filename)
	}

	w := &Workflow{Order: f.Order}
	if len(f.Blocks) > 0 {
		w.Graph = domain.ChainGraph(f.Blocks)
	} else {
		w.Graph = domain.Graph{Nodes: f.Nodes, Edges: f.Edges}
	}
	return w, nil
}
