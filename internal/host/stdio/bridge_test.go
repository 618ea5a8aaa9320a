package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/saorsa-labs/fae/internal/host"
)

func TestBridgeCommandResponseRoundTrip(t *testing.T) {
	channel := host.NewChannel()
	defer channel.Close()
	host.NewCore(channel)

	in := strings.NewReader(`{"v":1,"command":"host.ping","payload":{},"request_id":"r1"}` + "\n")
	outR, outW := io.Pipe()

	bridge := NewBridge(channel, in, outW)
	done := make(chan error, 1)
	go func() { done <- bridge.Run(context.Background()) }()

	scanner := bufio.NewScanner(outR)
	if !scanner.Scan() {
		t.Fatal("no response line")
	}
	var resp host.ResponseEnvelope
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("response line is not JSON: %v", err)
	}
	if !resp.OK || resp.RequestID != "r1" || resp.Payload["pong"] != true {
		t.Errorf("response = %+v", resp)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not exit on stdin EOF")
	}
}

func TestBridgeInterleavesEvents(t *testing.T) {
	channel := host.NewChannel()
	defer channel.Close()
	host.NewCore(channel)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	bridge := NewBridge(channel, inR, outW)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx) //nolint:errcheck

	// device.go_home responds AND emits an event; both must arrive as
	// separate, well-formed JSON lines.
	go func() {
		inW.Write([]byte(`{"v":1,"command":"device.go_home","payload":{},"request_id":"r2"}` + "\n")) //nolint:errcheck
	}()

	scanner := bufio.NewScanner(outR)
	sawResponse, sawEvent := false, false
	deadline := time.After(2 * time.Second)
	lines := make(chan []byte, 4)
	go func() {
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			lines <- line
		}
	}()

	for !(sawResponse && sawEvent) {
		select {
		case line := <-lines:
			var generic map[string]any
			if err := json.Unmarshal(line, &generic); err != nil {
				t.Fatalf("line is not JSON: %q", line)
			}
			if _, ok := generic["request_id"]; ok {
				sawResponse = true
			}
			if generic["event"] == "device.home_requested" {
				sawEvent = true
			}
		case <-deadline:
			t.Fatalf("timed out: sawResponse=%v sawEvent=%v", sawResponse, sawEvent)
		}
	}

	inW.Close()
}

func TestBridgeMalformedLineStaysLineOriented(t *testing.T) {
	channel := host.NewChannel()
	defer channel.Close()
	host.NewCore(channel)

	in := strings.NewReader("this is not json\n" + `{"v":1,"command":"host.ping","payload":{},"request_id":"after"}` + "\n")
	outR, outW := io.Pipe()

	bridge := NewBridge(channel, in, outW)
	go bridge.Run(context.Background()) //nolint:errcheck

	scanner := bufio.NewScanner(outR)

	if !scanner.Scan() {
		t.Fatal("no error response line")
	}
	var errResp host.ResponseEnvelope
	if err := json.Unmarshal(scanner.Bytes(), &errResp); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if errResp.OK || errResp.Error.Kind != "Parse" {
		t.Errorf("error response = %+v", errResp)
	}

	if !scanner.Scan() {
		t.Fatal("no second response line")
	}
	var ok host.ResponseEnvelope
	if err := json.Unmarshal(scanner.Bytes(), &ok); err != nil {
		t.Fatal(err)
	}
	if !ok.OK || ok.RequestID != "after" {
		t.Errorf("second response = %+v", ok)
	}
}
