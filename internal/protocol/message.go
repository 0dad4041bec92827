package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dreamware/primeshard/internal/chunk"
)

// DefaultMaxDatagramSize is the receive buffer size used by both ends.
// Every encoded message, including a chunk's full result list, must fit.
const DefaultMaxDatagramSize = 4096

// Type discriminates the message variants carried in the "type" field.
type Type string

const (
	// TypeRequest asks the coordinator for a chunk. Worker to coordinator.
	TypeRequest Type = "request"
	// TypeTask carries one chunk. Coordinator to worker.
	TypeTask Type = "task"
	// TypeDone signals that no chunks remain or that the run has finished.
	TypeDone Type = "done"
	// TypeResult reports the primes found in a chunk. Worker to coordinator.
	TypeResult Type = "result"
)

var (
	// ErrMalformed is returned when a payload is not a JSON object.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is returned when the type discriminator is missing or unrecognized.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMissingField is returned when a variant lacks its required field.
	ErrMissingField = errors.New("missing message field")
	// ErrOversizedPayload is returned when a datagram exceeds the receive buffer.
	ErrOversizedPayload = errors.New("payload exceeds datagram size")
)

// Message is the tagged union exchanged between coordinator and workers.
// Only the field matching Type is populated.
type Message struct {
	Type   Type         `json:"type"`
	Range  *chunk.Range `json:"range,omitempty"`
	Primes []int64      `json:"primes,omitempty"`
}

// Request builds a request message.
func Request() Message { return Message{Type: TypeRequest} }

// Done builds a done message.
func Done() Message { return Message{Type: TypeDone} }

// Task builds a task message for r.
func Task(r chunk.Range) Message {
	return Message{Type: TypeTask, Range: &r}
}

// Result builds a result message. A nil slice is sent as an empty list so the
// field is always present on the wire.
func Result(primes []int64) Message {
	if primes == nil {
		primes = []int64{}
	}
	return Message{Type: TypeResult, Primes: primes}
}

// wireResult forces "primes" onto the wire even when the list is empty;
// omitempty on Message would otherwise drop it.
type wireResult struct {
	Type   Type    `json:"type"`
	Primes []int64 `json:"primes"`
}

// Encode serializes m to its UTF-8 JSON datagram payload.
func Encode(m Message) ([]byte, error) {
	switch m.Type {
	case TypeRequest, TypeDone:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{m.Type})
	case TypeTask:
		if m.Range == nil {
			return nil, fmt.Errorf("%w: task without range", ErrMissingField)
		}
		return json.Marshal(m)
	case TypeResult:
		primes := m.Primes
		if primes == nil {
			primes = []int64{}
		}
		return json.Marshal(wireResult{Type: m.Type, Primes: primes})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// Decode parses one datagram payload. Each payload is self-contained; no
// state is carried between calls.
func Decode(data []byte) (Message, error) {
	var raw struct {
		Type   Type            `json:"type"`
		Range  *chunk.Range    `json:"range"`
		Primes json.RawMessage `json:"primes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := Message{Type: raw.Type}
	switch raw.Type {
	case TypeRequest, TypeDone:
	case TypeTask:
		if raw.Range == nil {
			return Message{}, fmt.Errorf("%w: task without range", ErrMissingField)
		}
		m.Range = raw.Range
	case TypeResult:
		if len(raw.Primes) == 0 || string(raw.Primes) == "null" {
			return Message{}, fmt.Errorf("%w: result without primes", ErrMissingField)
		}
		if err := json.Unmarshal(raw.Primes, &m.Primes); err != nil {
			return Message{}, fmt.Errorf("%w: primes: %v", ErrMalformed, err)
		}
	case "":
		return Message{}, fmt.Errorf("%w: missing type", ErrUnknownType)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}
	return m, nil
}

// EncodedResultSize returns the exact payload size of a result message
// carrying primes, without allocating the payload.
func EncodedResultSize(primes []int64) int {
	// {"type":"result","primes":[]}
	size := len(`{"type":"result","primes":[]}`)
	var buf [20]byte
	for i, p := range primes {
		if i > 0 {
			size++ // comma
		}
		size += len(strconv.AppendInt(buf[:0], p, 10))
	}
	return size
}

// MaxResultSize bounds the result payload for a chunk holding at most count
// primes none larger than maxValue.
func MaxResultSize(count, maxValue int64) int64 {
	if count <= 0 {
		return int64(len(`{"type":"result","primes":[]}`))
	}
	digits := int64(len(strconv.FormatInt(maxValue, 10)))
	return int64(len(`{"type":"result","primes":[]}`)) + count*digits + (count - 1)
}
