package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/engine"
	"chart-recorder/internal/platform"
	"chart-recorder/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startFeed runs a websocket server that sends the given frames and then
// holds the connection open.
func startFeed(t *testing.T, frames []Frame) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newBridgeEngine(t *testing.T, snap *platform.Snapshot) (*engine.Engine, *memory.Sink) {
	t.Helper()
	sink := memory.NewSink()
	eng, err := engine.New(snap, engine.DefaultConfig(), sink, nil, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestClient_ProcessesUpdateFrames(t *testing.T) {
	snap := platform.NewSnapshot()
	eng, sink := newBridgeEngine(t, snap)

	frames := []Frame{
		{Kind: FrameSymbol, Chart: 3, Data: []byte(`{"sym":"ESZ5"}`)},
		{Kind: FrameBar, Chart: 3, Data: []byte(`{"i":0,"t":1700000000,"o":6502,"h":6503,"l":6501,"c":6502.5,"v":10}`)},
		{Kind: FrameUpdate, Chart: 3},
		// A second update on the same bar must not duplicate the record.
		{Kind: FrameUpdate, Chart: 3},
	}
	endpoint := startFeed(t, frames)

	client := NewClient(endpoint, snap, eng, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	waitFor(t, func() bool {
		return len(sink.OfKind(domain.StreamBaseData)) >= 1
	})
	// Give the second update frame time to arrive before asserting.
	time.Sleep(100 * time.Millisecond)

	recs := sink.OfKind(domain.StreamBaseData)
	if len(recs) != 1 {
		t.Errorf("Expected 1 basedata record across two updates, got %d", len(recs))
	}
	bd := recs[0].(domain.BaseData)
	if bd.Sym != "ESZ5" || bd.Close != 6502.5 {
		t.Errorf("Unexpected record %+v", bd)
	}

	client.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestClient_SkipsMalformedFrames(t *testing.T) {
	snap := platform.NewSnapshot()
	eng, sink := newBridgeEngine(t, snap)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(Frame{Kind: "bogus", Chart: 3})
		conn.WriteJSON(Frame{Kind: FrameBar, Chart: 3, Data: []byte(`{"i":0,"t":1700000000,"c":6502}`)})
		conn.WriteJSON(Frame{Kind: FrameUpdate, Chart: 3})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"), snap, eng, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	// The good frames after the bad ones still land.
	waitFor(t, func() bool {
		return len(sink.OfKind(domain.StreamBaseData)) == 1
	})
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	snap := platform.NewSnapshot()
	eng, sink := newBridgeEngine(t, snap)

	conns := make(chan struct{}, 4)
	bar := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- struct{}{}

		// Each connection delivers one new bar and update, then drops.
		conn.WriteJSON(Frame{Kind: FrameBar, Chart: 3, Data: rawData(t, BarFrame{
			Index: bar, Time: 1700000000 + float64(60*bar), Close: 6502,
		})})
		conn.WriteJSON(Frame{Kind: FrameUpdate, Chart: 3})
		bar++
		time.Sleep(50 * time.Millisecond)
		conn.Close()
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"), snap, eng, &cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	// At least two connections and two distinct bars recorded.
	waitFor(t, func() bool { return len(conns) >= 2 })
	waitFor(t, func() bool {
		return len(sink.OfKind(domain.StreamBaseData)) >= 2
	})
}
