// Package stdio implements the headless host bridge: newline-delimited JSON
// command envelopes in on stdin, response and event envelopes out on stdout.
// Diagnostic logs go strictly to stderr so stdout stays a clean protocol
// channel.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/saorsa-labs/fae/internal/host"
)

// Bridge pumps a [host.Channel] over a line-oriented reader/writer pair.
type Bridge struct {
	channel *host.Channel
	in      io.Reader
	out     io.Writer

	writeMu sync.Mutex
}

// NewBridge wires channel to in/out. Pass os.Stdin/os.Stdout in production;
// tests substitute pipes.
func NewBridge(channel *host.Channel, in io.Reader, out io.Writer) *Bridge {
	return &Bridge{channel: channel, in: in, out: out}
}

// Run processes commands until in reaches EOF or ctx is cancelled. Events
// emitted by the core are interleaved onto the output stream through the
// channel's callback; responses and events never tear because every line is
// written under one mutex.
func (b *Bridge) Run(ctx context.Context) error {
	// Push events onto stdout as they arrive.
	b.channel.SetEventCallback(func(event host.EventEnvelope) {
		b.writeLine(event)
	})
	defer b.channel.SetEventCallback(nil)

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(b.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			response := b.channel.SendCommandJSON(ctx, line)
			b.writeRaw(response)
		}
	}
}

func (b *Bridge) writeLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("stdio bridge: encode failed", "err", err)
		return
	}
	b.writeRaw(data)
}

func (b *Bridge) writeRaw(data []byte) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := b.out.Write(append(data, '\n')); err != nil {
		slog.Error("stdio bridge: write failed", "err", err)
	}
}
