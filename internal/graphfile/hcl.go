package graphfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclFile — верхний уровень файла .hcl.
type hclFile struct {
	Blocks []*hclBlock `hcl:"block,block"`
	Edges  []*hclEdge  `hcl:"edge,block"`
	Order  []string    `hcl:"order,optional"`
}

// hclBlock — block "<type>" "<id>" { config = {...} }.
type hclBlock struct {
	Type   string         `hcl:"type,label"`
	ID     string         `hcl:"id,label"`
	Config hcl.Expression `hcl:"config,optional"`
}

// hclEdge — edge { source = "..." target = "..." }.
type hclEdge struct {
	Source string `hcl:"source"`
	Target string `hcl:"target"`
}

func parseHCL(data []byte, filename string) (*Workflow, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	nodes := make([]domain.BlockSpec, 0, len(parsed.Blocks))
	for _, b := range parsed.Blocks {
		config, err := decodeConfig(b.Config)
		if err != nil {
			return nil, fmt.Errorf("%s: block %s: %w", filename, b.ID, err)
		}
		nodes = append(nodes, domain.BlockSpec{
			ID:     b.ID,
			Type:   domain.BlockType(b.Type),
			Config: config,
		})
	}

	w := &Workflow{Order: parsed.Order}
	if len(parsed.Edges) == 0 {
		w.Graph = domain.ChainGraph(nodes)
		return w, nil
	}

	edges := make([]domain.Edge, len(parsed.Edges))
	for i, e := range parsed.Edges {
		edges[i] = domain.Edge{Source: e.Source, Target: e.Target}
	}
	w.Graph = domain.Graph{Nodes: nodes, Edges: edges}
	return w, nil
}

// decodeConfig вычисляет выражение config в map[string]any.
// Отсутствующий config — nil.
func decodeConfig(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate config: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}

	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("config must be an object, got %s", ty.FriendlyName())
	}

	native, err := ctyToNative(val)
	if err != nil {
		return nil, err
	}
	return native.(map[string]any), nil
}

// ctyToNative рекурсивно переводит cty.Value в string, float64, bool,
// []any или map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0)
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
