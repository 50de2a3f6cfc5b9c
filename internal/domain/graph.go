package domain

// BlockType — тип блока.
type BlockType string

const (
	BlockTypeRead      BlockType = "read"
	BlockTypeWrite     BlockType = "write"
	BlockTypeFilter    BlockType = "filter"
	BlockTypeEnrich    BlockType = "enrich"
	BlockTypeFindEmail BlockType = "find_email"
)

// BlockSpec — описание одного блока графа.
//
// Создаётся из графа пользователя при submit и не меняется
// в течение всего run.
type BlockSpec struct {
	// ID — уникальный идентификатор блока внутри графа.
	ID string `json:"id"`

	// Type — тип блока (read, write, filter, enrich, find_email).
	Type BlockType `json:"type"`

	// Config — конфигурация блока. Схема зависит от Type.
	Config map[string]any `json:"config,omitempty"`
}

// Edge — ребро графа: блок Target читает выход блока Source.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph — граф блоков, который пользователь отправляет на выполнение.
//
// Порядок Nodes значим: он используется как tie-break при
// топологической сортировке.
type Graph struct {
	Nodes []BlockSpec `json:"nodes"`
	Edges []Edge      `json:"edges"`
}

// ChainGraph строит линейный граф из упорядоченного списка блоков:
// blocks[i] → blocks[i+1].
func ChainGraph(blocks []BlockSpec) Graph {
	g := Graph{
		Nodes: blocks,
		Edges: make([]Edge, 0, len(blocks)),
	}
	for i := 1; i < len(blocks); i++ {
		g.Edges = append(g.Edges, Edge{Source: blocks[i-1].ID, Target: blocks[i].ID})
	}
	return g
}

// Node возвращает блок по ID.
func (g *Graph) Node(id string) (*BlockSpec, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}
