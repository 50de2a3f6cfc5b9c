package mq

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/tableflow/internal/domain"
)

func TestRunSubmitPayload_Graph(t *testing.T) {
	t.Run("nodes and edges", func(t *testing.T) {
		p := RunSubmitPayload{
			Nodes: []domain.BlockSpec{{ID: "a", Type: domain.BlockTypeRead}, {ID: "b", Type: domain.BlockTypeWrite}},
			Edges: []domain.Edge{{Source: "a", Target: "b"}},
		}
		g := p.Graph()
		if len(g.Nodes) != 2 || len(g.Edges) != 1 {
			t.Fatalf("unexpected graph: %+v", g)
		}
	})

	t.Run("blocks become a chain", func(t *testing.T) {
		p := RunSubmitPayload{
			Blocks: []domain.BlockSpec{
				{ID: "a", Type: domain.BlockTypeRead},
				{ID: "b", Type: domain.BlockTypeFilter},
				{ID: "c", Type: domain.BlockTypeWrite},
			},
		}
		g := p.Graph()
		if len(g.Edges) != 2 {
			t.Fatalf("expected 2 edges, got %d", len(g.Edges))
		}
		if g.Edges[0] != (domain.Edge{Source: "a", Target: "b"}) {
			t.Errorf("unexpected first edge: %+v", g.Edges[0])
		}
		if g.Edges[1] != (domain.Edge{Source: "b", Target: "c"}) {
			t.Errorf("unexpected second edge: %+v", g.Edges[1])
		}
	})
}

func TestRunEvent_RoundTrip(t *testing.T) {
	state := &domain.RunState{
		ID:                uuid.New(),
		Status:            domain.RunStatusFailed,
		CurrentBlockIndex: 2,
		Error:             "block enrich: boom",
	}

	msg, err := NewMessage(MessageTypeRunFailed, NewRunEvent(MessageTypeRunFailed, state))
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("message ID should be set")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != MessageTypeRunFailed {
		t.Errorf("Type = %q, want %q", decoded.Type, MessageTypeRunFailed)
	}

	event, err := DecodePayload[RunEvent](&decoded)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if event.RunID != state.ID {
		t.Errorf("RunID = %v, want %v", event.RunID, state.ID)
	}
	if event.Status != domain.RunStatusFailed || event.CurrentBlockIndex != 2 || event.Error != state.Error {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestDecodePayload_Submit(t *testing.T) {
	raw := `{"id":"1","type":"run.submit","payload":{"blocks":[{"id":"r","type":"read","config":{"source_name":"leads.csv"}}]},"timestamp":"2024-01-01T00:00:00Z"}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := DecodePayload[RunSubmitPayload](&msg)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(payload.Blocks) != 1 || payload.Blocks[0].Config["source_name"] != "leads.csv" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		if _, err := DecodePayload[RunEvent](&Message{ID: "1"}); err == nil {
			t.Fatal("expected error for empty payload")
		}
	})

	t.Run("wrong shape", func(t *testing.T) {
		msg := &Message{ID: "2", Type: MessageTypeRunSubmit, Payload: json.RawMessage(`[1,2,3]`)}
		if _, err := DecodePayload[RunSubmitPayload](msg); err == nil {
			t.Fatal("expected error for array payload")
		}
	})
}

func TestConnectionConfig_Defaults(t *testing.T) {
	var cfg ConnectionConfig
	cfg.applyDefaults()

	if cfg.URL != DefaultURL() {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Name == "" || cfg.Logger == nil {
		t.Errorf("Name and Logger should be defaulted: %+v", cfg)
	}
	if cfg.ReconnectDelay <= 0 || cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		t.Errorf("unexpected backoff: %v..%v", cfg.ReconnectDelay, cfg.MaxReconnectDelay)
	}
}

func TestDefaultTopology(t *testing.T) {
	topo := DefaultTopology()
	if err := topo.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var submit *QueueSpec
	for i := range topo.Queues {
		if topo.Queues[i].Name == QueueRunsSubmit {
			submit = &topo.Queues[i]
		}
	}
	if submit == nil {
		t.Fatal("runs.submit is not declared")
	}
	if submit.Args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
		t.Errorf("runs.submit should dead-letter to %s, args: %v", ExchangeDLQ, submit.Args)
	}
}

func TestTopology_ValidateErrors(t *testing.T) {
	t.Run("undeclared exchange", func(t *testing.T) {
		topo := Topology{
			Exchanges: []Exchange{ExchangeRuns},
			Queues:    []QueueSpec{{Name: QueueDLQRuns, Exchange: ExchangeDLQ, RoutingKey: RoutingKeyDLQRuns}},
		}
		if err := topo.Validate(); err == nil {
			t.Fatal("expected error for undeclared exchange")
		}
	})

	t.Run("duplicate queue", func(t *testing.T) {
		topo := Topology{
			Exchanges: []Exchange{ExchangeRuns},
			Queues: []QueueSpec{
				{Name: QueueRunsEvents, Exchange: ExchangeRuns, RoutingKey: RoutingKeyEvents},
				{Name: QueueRunsEvents, Exchange: ExchangeRuns, RoutingKey: RoutingKeySubmit},
			},
		}
		if err := topo.Validate(); err == nil {
			t.Fatal("expected error for duplicate queue")
		}
	})
}
