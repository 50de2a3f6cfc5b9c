package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/tableflow/internal/domain"
)

// Node — узел графа.
type Node struct {
	// Spec — описание блока.
	Spec *domain.BlockSpec

	// ID — идентификатор узла (совпадает с Spec.ID).
	ID string

	// Index — позиция блока в исходном графе. Используется как tie-break.
	Index int

	// InDegree — количество входящих рёбер.
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла (в порядке рёбер).
	Dependents []*Node
}

// DAG — граф блоков, построенный из domain.Graph.
type DAG struct {
	// Nodes — все узлы графа (blockID → Node).
	Nodes map[string]*Node

	// List — узлы в порядке исходного графа.
	List []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// Compile превращает граф в детерминированный линейный порядок выполнения.
//
// Пустой граф даёт пустой результат; отклонять его — задача вызывающего.
// Несколько блоков без единого ребра → ErrDisconnectedGraph. Цикл → ErrCyclicGraph
// с именем одного из блоков цикла.
func Compile(graph *domain.Graph) ([]domain.BlockSpec, error) {
	dag, err := BuildDAG(graph)
	if err != nil {
		return nil, err
	}

	order := make([]domain.BlockSpec, 0, len(dag.Order))
	for _, node := range dag.Order {
		order = append(order, *node.Spec)
	}
	return order, nil
}

// BuildDAG строит DAG и вычисляет порядок выполнения.
func BuildDAG(graph *domain.Graph) (*DAG, error) {
	if err := Validate(graph); err != nil {
		return nil, err
	}

	dag := &DAG{
		Nodes: make(map[string]*Node),
		List:  make([]*Node, 0),
		Order: make([]*Node, 0),
	}
	if graph == nil || len(graph.Nodes) == 0 {
		return dag, nil
	}

	// Первый проход: создаём все узлы
	for i := range graph.Nodes {
		spec := &graph.Nodes[i]
		node := &Node{
			Spec:       spec,
			ID:         spec.ID,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[spec.ID] = node
		dag.List = append(dag.List, node)
	}

	// Второй проход: связываем узлы по рёбрам
	for _, e := range graph.Edges {
		dag.addEdge(dag.Nodes[e.Source], dag.Nodes[e.Target])
	}

	if err := dag.checkConnected(len(graph.Edges)); err != nil {
		return nil, err
	}

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// checkConnected отклоняет граф из нескольких блоков без единого ребра:
// порядок между ними не задан. Граф с рёбрами упорядочивается алгоритмом Кана,
// даже если в нём несколько компонент.
func (d *DAG) checkConnected(edgeCount int) error {
	if len(d.List) <= 1 || edgeCount > 0 {
		return nil
	}
	return NewGraphError(d.List[1].ID, "edges",
		fmt.Sprintf("%d blocks have no edges between them, execution order is undefined", len(d.List)),
		ErrDisconnectedGraph)
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
//
// Очередь заполняется узлами с нулевой степенью захода в порядке графа.
// Узлы, ставшие готовыми после обработки одного узла, добавляются
// в очередь в порядке графа, а не в порядке рёбер.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.List))
	queue := make([]*Node, 0)
	for _, node := range d.List {
		inDegree[node.ID] = node.InDegree
		if node.InDegree == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]*Node, 0, len(d.List))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		ready := make([]*Node, 0)
		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				ready = append(ready, dependent)
			}
		}
		slices.SortFunc(ready, func(a, b *Node) int { return a.Index - b.Index })
		queue = append(queue, ready...)
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.List) {
		culprit := d.findCycleNode(inDegree)
		return nil, NewGraphError(culprit, "edges",
			fmt.Sprintf("block %s is part of a dependency cycle", culprit), ErrCyclicGraph)
	}

	return order, nil
}

// findCycleNode возвращает ID узла, лежащего на цикле.
//
// У каждого необработанного узла есть необработанный предшественник,
// поэтому обход по предшественникам обязательно зацикливается.
func (d *DAG) findCycleNode(inDegree map[string]int) string {
	var start *Node
	for _, node := range d.List {
		if inDegree[node.ID] > 0 {
			start = node
			break
		}
	}
	if start == nil {
		return ""
	}

	seen := make(map[string]bool)
	node := start
	for !seen[node.ID] {
		seen[node.ID] = true
		for _, dep := range node.DependsOn {
			if inDegree[dep.ID] > 0 {
				node = dep
				break
			}
		}
	}
	return node.ID
}

// VerifyOrder проверяет порядок, переданный вызывающим.
//
// Порядок должен быть перестановкой ID блоков графа, в которой
// источник каждого ребра стоит раньше его цели.
func VerifyOrder(graph *domain.Graph, order []string) error {
	if len(order) != len(graph.Nodes) {
		return NewGraphError("", "order",
			fmt.Sprintf("order has %d entries, graph has %d blocks", len(order), len(graph.Nodes)), ErrInvalidOrder)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		if _, ok := graph.Node(id); !ok {
			return NewGraphError(id, "order", "order references unknown block", ErrInvalidOrder)
		}
		if _, dup := pos[id]; dup {
			return NewGraphError(id, "order", "block appears twice in order", ErrInvalidOrder)
		}
		pos[id] = i
	}

	for _, e := range graph.Edges {
		if pos[e.Source] >= pos[e.Target] {
			return NewGraphError(e.Target, "order",
				fmt.Sprintf("block %s must run after %s", e.Target, e.Source), ErrInvalidOrder)
		}
	}
	return nil
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}
