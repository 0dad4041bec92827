// Package protocol defines the datagram messages exchanged between the
// coordinator and its workers, and their JSON encoding.
//
// # Messages
//
// Every datagram is one UTF-8 JSON object with a mandatory "type" field:
//
//	type     direction            fields             reply
//	request  worker→coordinator   -                  task or done
//	task     coordinator→worker   range: [lo,hi]     -
//	done     coordinator→worker   -                  -
//	result   worker→coordinator   primes: [p,...]    none
//
// Messages are independently decodable. Nothing in this package tracks
// sessions, ordering, or which chunk a result belongs to.
//
// # Size Limits
//
// Both ends read into a fixed buffer of DefaultMaxDatagramSize bytes. A
// result message carries the full prime list for its chunk, so the chunk
// size must be bounded so that MaxResultSize stays under the buffer.
// Payloads that do not fit are a framing error (ErrOversizedPayload).
//
// # Errors
//
//   - ErrMalformed: payload is not a JSON object, or a field has the wrong shape
//   - ErrUnknownType: "type" missing or not one of the four variants
//   - ErrMissingField: task without range, result without primes
//   - ErrOversizedPayload: datagram larger than the receive buffer
package protocol
