package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Emitter is anything events can be published to: the in-process Bus or a
// JSON-lines stream.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// ErrUnknownEvent is returned by Decoder.Next for an event whose name this
// build does not know. The stream stays usable after it.
var ErrUnknownEvent = errors.New("unknown event")

// maxLineSize bounds a single encoded event.
const maxLineSize = 1 << 20

// Encoder writes events as JSON lines. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Emit implements Emitter by writing ev as one line.
func (e *Encoder) Emit(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(ev)
}

type wireEvent struct {
	ID         string          `json:"id"`
	Name       Name            `json:"name"`
	Generation uint64          `json:"generation"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// Decoder reads JSON-line events in the order they were written.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: sc}
}

// Next returns the next event, or io.EOF when the stream ends. Blank lines
// are skipped. An unrecognised event name yields an error wrapping
// ErrUnknownEvent and the caller may keep reading.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var wire wireEvent
		if err := json.Unmarshal(raw, &wire); err != nil {
			return Event{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		payload, err := decodePayload(wire.Name, wire.Payload)
		if err != nil {
			return Event{ID: wire.ID, Name: wire.Name, Generation: wire.Generation}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return Event{
			ID:         wire.ID,
			Name:       wire.Name,
			Generation: wire.Generation,
			Timestamp:  wire.Timestamp,
			Payload:    payload,
		}, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func decodePayload(name Name, raw json.RawMessage) (any, error) {
	switch name {
	case NameProgress:
		var p Progress
		err := json.Unmarshal(raw, &p)
		return p, err
	case NameResult:
		var r ItemResult
		err := json.Unmarshal(raw, &r)
		return r, err
	case NameComplete:
		var c Complete
		err := json.Unmarshal(raw, &c)
		return c, err
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
	}
}
