package feed

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

func TestBybitSubscribeRequest(t *testing.T) {
	a := NewBybitAdapter("BYBIT", testLogger())
	raw, err := a.SubscribeRequest([]string{"BTCUSDT"})
	if err != nil {
		t.Fatalf("subscribe request: %v", err)
	}
	var req struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.Op != "subscribe" || len(req.Args) != 1 || req.Args[0] != "orderbook.50.BTCUSDT" {
		t.Fatalf("request = %+v", req)
	}
}

func TestBybitParseSnapshotAndDelta(t *testing.T) {
	a := NewBybitAdapter("BYBIT", testLogger())
	snapshot := []byte(`{
		"topic": "orderbook.50.BTCUSDT",
		"type": "snapshot",
		"ts": 1756641000123,
		"data": {"s": "BTCUSDT", "b": [["50000", "1"]], "a": [["50001", "2"]]}
	}`)
	delta := []byte(`{
		"topic": "orderbook.50.BTCUSDT",
		"type": "delta",
		"ts": 1756641000456,
		"data": {"s": "BTCUSDT", "b": [["50000", "0"]], "a": []}
	}`)
	received := time.Now().UTC()

	snapBatch, err := a.Parse(snapshot, received)
	if err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	if !snapBatch.Snapshot {
		t.Fatal("snapshot frame not flagged")
	}
	if len(snapBatch.Updates) != 2 {
		t.Fatalf("snapshot updates = %d, want 2", len(snapBatch.Updates))
	}

	deltaBatch, err := a.Parse(delta, received)
	if err != nil {
		t.Fatalf("parse delta: %v", err)
	}
	if deltaBatch.Snapshot {
		t.Fatal("delta frame flagged as snapshot")
	}
	if len(deltaBatch.Updates) != 1 || deltaBatch.Updates[0].Quantity != 0 {
		t.Fatalf("delta updates = %+v, want one zero-quantity bid", deltaBatch.Updates)
	}
	if deltaBatch.Updates[0].Side != marketdata.Bid {
		t.Fatalf("delta side = %v, want bid", deltaBatch.Updates[0].Side)
	}
}

func TestBybitParseAckIsSkipped(t *testing.T) {
	a := NewBybitAdapter("BYBIT", testLogger())
	batch, err := a.Parse([]byte(`{"op":"subscribe","success":true,"conn_id":"abc"}`), time.Now().UTC())
	if err != nil || batch != nil {
		t.Fatalf("ack frame: batch=%v err=%v, want nil/nil", batch, err)
	}
}

func TestBybitParseEmptyData(t *testing.T) {
	a := NewBybitAdapter("BYBIT", testLogger())
	_, err := a.Parse([]byte(`{"topic":"orderbook.50.BTCUSDT","type":"delta","ts":1,"data":{"s":"BTCUSDT","b":[],"a":[]}}`), time.Now().UTC())
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestBybitParseMalformedLevelSkipped(t *testing.T) {
	a := NewBybitAdapter("BYBIT", testLogger())
	frame := []byte(`{
		"topic": "orderbook.50.BTCUSDT",
		"type": "delta",
		"ts": 1756641000123,
		"data": {"s": "BTCUSDT", "b": [["oops", "1"], ["49999", "1"]], "a": [["50001"]]}
	}`)
	batch, err := a.Parse(frame, time.Now().UTC())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(batch.Updates) != 1 || batch.Updates[0].Price != 49999 {
		t.Fatalf("updates = %+v, want only the 49999 bid", batch.Updates)
	}
}
