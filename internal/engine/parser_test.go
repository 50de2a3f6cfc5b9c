package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/tableflow/internal/domain"
)

func TestValidate_EmptyBlockID(t *testing.T) {
	graph := &domain.Graph{
		Nodes: []domain.BlockSpec{{ID: "", Type: domain.BlockTypeRead}},
	}

	err := Validate(graph)
	var gErr *GraphError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected GraphError, got %T", err)
	}
	if !errors.Is(gErr.Err, ErrEmptyBlockID) {
		t.Errorf("expected ErrEmptyBlockID, got %v", gErr.Err)
	}
}

func TestValidate_DuplicateBlockID(t *testing.T) {
	graph := &domain.Graph{
		Nodes: []domain.BlockSpec{
			{ID: "a", Type: domain.BlockTypeRead},
			{ID: "a", Type: domain.BlockTypeWrite},
		},
	}

	err := Validate(graph)
	if !errors.Is(err, ErrDuplicateBlockID) {
		t.Errorf("expected ErrDuplicateBlockID, got %v", err)
	}
}

func TestValidate_UnknownBlockType(t *testing.T) {
	graph := &domain.Graph{
		Nodes: []domain.BlockSpec{{ID: "a", Type: "http"}},
	}

	err := Validate(graph)
	var gErr *GraphError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected GraphError, got %v", err)
	}
	if gErr.NodeID != "a" || gErr.Field != "type" {
		t.Errorf("unexpected error context: %+v", gErr)
	}
	if !errors.Is(err, ErrUnknownBlockType) {
		t.Errorf("expected ErrUnknownBlockType, got %v", err)
	}
}

func TestValidate_UnknownEdgeNode(t *testing.T) {
	tests := []struct {
		name string
		edge domain.Edge
	}{
		{name: "unknown source", edge: domain.Edge{Source: "x", Target: "a"}},
		{name: "unknown target", edge: domain.Edge{Source: "a", Target: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := &domain.Graph{
				Nodes: []domain.BlockSpec{{ID: "a", Type: domain.BlockTypeRead}},
				Edges: []domain.Edge{tt.edge},
			}
			if err := Validate(graph); !errors.Is(err, ErrUnknownEdgeNode) {
				t.Errorf("expected ErrUnknownEdgeNode, got %v", err)
			}
		})
	}
}

func TestValidBlockTypes(t *testing.T) {
	types := ValidBlockTypes()
	if len(types) != 5 {
		t.Fatalf("expected 5 block types, got %d", len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] > types[i] {
			t.Errorf("types are not sorted: %v", types)
		}
	}
	if !IsValidBlockType(domain.BlockTypeFindEmail) {
		t.Error("find_email should be valid")
	}
}
