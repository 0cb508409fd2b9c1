package console

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/orbis/internal/script"
)

func testRegistry(t *testing.T) *script.Registry {
	t.Helper()
	reg := script.NewRegistry(zaptest.NewLogger(t))
	reg.MustRegister("sky", "get_unix_ms", 0, "simulated time", func([]script.Value) (script.Value, error) {
		return script.Int(42), nil
	})
	return reg
}

func TestEvaluate(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		line   string
		ok     bool
		result string
		errSub string
	}{
		{"sky.get_unix_ms()", true, "42", ""},
		{"sky.explode()", false, "", "unknown method"},
		{"sky.get_unix_ms(", false, "", "syntax error"},
		{"help", true, "sky.get_unix_ms - simulated time", ""},
	}
	for _, tt := range tests {
		got := Evaluate(reg, tt.line)
		if got.OK != tt.ok || got.Result != tt.result || !strings.Contains(got.Error, tt.errSub) {
			t.Errorf("Evaluate(%q) = %+v", tt.line, got)
		}
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	s := New(zaptest.NewLogger(t), 4)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// Stand in for the frame loop.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				s.Drain(reg, 8)
			}
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, line := range []string{"sky.get_unix_ms()", "sky.nothing()"} {
		if err := conn.WriteJSON(Request{Line: line}); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Line != line {
			t.Errorf("reply for %q, want %q", resp.Line, line)
		}
		if line == "sky.get_unix_ms()" && (!resp.OK || resp.Result != "42") {
			t.Errorf("unexpected reply %+v", resp)
		}
		if line == "sky.nothing()" && resp.OK {
			t.Errorf("unknown method succeeded: %+v", resp)
		}
	}
}

func TestDrainIsNonBlocking(t *testing.T) {
	s := New(nil, 1)
	if n := s.Drain(testRegistry(t), 10); n != 0 {
		t.Errorf("Drain on an empty queue ran %d lines", n)
	}
}
