package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"crunch/internal/events"
)

// Process runs each batch in a child process. The request is written to the
// child's stdin as JSON and the child answers with JSON-line events on
// stdout, which are relayed to the emitter in the order they arrive.
type Process struct {
	emitter events.Emitter
	logger  hclog.Logger
	command string
	args    []string
}

// NewProcess returns an engine that runs command with args for every batch.
func NewProcess(emitter events.Emitter, logger hclog.Logger, command string, args ...string) *Process {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Process{emitter: emitter, logger: logger, command: command, args: args}
}

// Submit blocks until the child exits. A non-zero exit or an unreadable
// event stream is an error. Events are restamped with req.Generation.
func (p *Process) Submit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	logger := p.logger.With("generation", req.Generation, "command", p.command)

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(body)
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to engine: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	logger.Debug("engine started", "pid", cmd.Process.Pid)

	relayErr := p.relay(ctx, logger, stdout, req.Generation)
	if relayErr != nil {
		// Drain so the child is not blocked writing when we wait on it.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if waitErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("engine exited: %w: %s", waitErr, msg)
		}
		return fmt.Errorf("engine exited: %w", waitErr)
	}
	return relayErr
}

func (p *Process) relay(ctx context.Context, logger hclog.Logger, r io.Reader, generation uint64) error {
	dec := events.NewDecoder(r)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, events.ErrUnknownEvent) {
			logger.Warn("skipping engine event", "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read engine output: %w", err)
		}
		ev.Generation = generation
		if err := p.emitter.Emit(ctx, ev); err != nil {
			logger.Warn("emit failed", "event", ev.Name, "error", err)
		}
	}
}

// stderrTail is how much of the child's stderr is kept for the exit message.
const stderrTail = 4 << 10

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf = append(t.buf[:0], p[len(p)-t.limit:]...)
		return n, nil
	}
	if over := len(t.buf) + len(p) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
