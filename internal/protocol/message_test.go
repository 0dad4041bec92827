package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/primeshard/internal/chunk"
)

// TestEncodeWireFormat pins the exact payloads workers and coordinator exchange
func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{name: "request", msg: Request(), want: `{"type":"request"}`},
		{name: "done", msg: Done(), want: `{"type":"done"}`},
		{name: "task", msg: Task(chunk.MustNew(1, 10)), want: `{"type":"task","range":[1,10]}`},
		{name: "result", msg: Result([]int64{2, 3, 5, 7}), want: `{"type":"result","primes":[2,3,5,7]}`},
		{name: "empty result", msg: Result(nil), want: `{"type":"result","primes":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	_, err := Encode(Message{Type: TypeTask})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Encode(Message{Type: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

// TestDecode tests decoding of each variant and every error class
func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Message
		wantErr error
	}{
		{name: "request", in: `{"type":"request"}`, want: Request()},
		{name: "done", in: `{"type":"done"}`, want: Done()},
		{name: "task", in: `{"type":"task","range":[11,20]}`, want: Task(chunk.MustNew(11, 20))},
		{name: "result", in: `{"type":"result","primes":[23,29]}`, want: Message{Type: TypeResult, Primes: []int64{23, 29}}},
		{name: "empty result", in: `{"type":"result","primes":[]}`, want: Message{Type: TypeResult, Primes: []int64{}}},
		{name: "extra fields ignored", in: `{"type":"request","worker":"w1"}`, want: Request()},
		{name: "not json", in: `hello`, wantErr: ErrMalformed},
		{name: "json array", in: `[1,2]`, wantErr: ErrMalformed},
		{name: "missing type", in: `{}`, wantErr: ErrUnknownType},
		{name: "unknown type", in: `{"type":"steal"}`, wantErr: ErrUnknownType},
		{name: "task without range", in: `{"type":"task"}`, wantErr: ErrMissingField},
		{name: "task with inverted range", in: `{"type":"task","range":[20,11]}`, wantErr: ErrMalformed},
		{name: "result without primes", in: `{"type":"result"}`, wantErr: ErrMissingField},
		{name: "result with null primes", in: `{"type":"result","primes":null}`, wantErr: ErrMissingField},
		{name: "result with strings", in: `{"type":"result","primes":["2"]}`, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodedResultSize(t *testing.T) {
	for _, primes := range [][]int64{nil, {2}, {2, 3, 5, 7}, {99991, 99989, 100003}} {
		data, err := Encode(Result(primes))
		require.NoError(t, err)
		assert.Equal(t, len(data), EncodedResultSize(primes), "primes %v", primes)
	}
}

func TestMaxResultSize(t *testing.T) {
	primes := []int64{11, 13, 17, 19}
	data, err := json.Marshal(wireResult{Type: TypeResult, Primes: primes})
	require.NoError(t, err)

	// four primes of at most two digits
	assert.GreaterOrEqual(t, MaxResultSize(4, 20), int64(len(data)))
	assert.Equal(t, int64(len(`{"type":"result","primes":[]}`)), MaxResultSize(0, 100))
}
