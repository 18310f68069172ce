/*
Package framing implements the wire protocol every broker/worker/
producer connection speaks: self-describing messages keyed by a
required verb, serialized as a length-prefixed byte stream the
receiver can decode without knowing the message shape in advance.
encoding/gob carries the payload — there is no ecosystem wire codec in
the reference stack this project draws from, and gob's self-describing
type stream is exactly what a verb-keyed freeform map needs.
*/
package framing

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// Verb is the closed set of recognised message verbs. The verb alone
// drives dispatch on the receiver; unrecognised verbs are a protocol
// error, not a silently-ignored message.
type Verb string

const (
	VerbClientStartup Verb = "client_startup"
	VerbClientReady   Verb = "client_ready"
	VerbDBReady       Verb = "db_ready"
	VerbNewTestCase   Verb = "new_test_case"
	VerbDeliver       Verb = "deliver"
	VerbTestResult    Verb = "test_result"
	VerbAckMsg        Verb = "ack_msg"
	VerbShutdown      Verb = "shutdown"
)

// Message is one framed protocol message: a verb plus freeform fields.
type Message struct {
	Verb   Verb
	Fields map[string]any
}

// Field reads a field by name, returning ok=false on absence so
// handlers can apply their own default instead of a zero value.
func (m Message) Field(name string) (any, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

func init() {
	// gob requires every concrete type that can appear as an interface
	// value to be registered; these are the value types the broker,
	// worker, and producer harnesses put in Message.Fields.
	gob.Register("")
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(uint32(0))
	gob.Register(uint64(0))
	gob.Register(bool(false))
	gob.Register([]byte(nil))
	gob.Register(map[string]any{})
}

// maxMessageLen bounds the length prefix so a corrupt or hostile peer
// can't make a reader allocate an unbounded buffer.
const maxMessageLen = 64 << 20

// Encode serializes a Message as a 4-byte big-endian length prefix
// followed by its gob encoding.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("framing: encode: %w", err)
	}
	body := buf.Bytes()

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// WriteTo writes an encoded Message to w.
func WriteTo(w io.Writer, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Reader stream-decodes a sequence of length-prefixed Messages from an
// underlying io.Reader, one at a time, without requiring the whole
// connection's bytes to be buffered up front.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for framed message decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMessage blocks until one full framed message is available,
// decodes it, and returns it. io.EOF propagates unwrapped so callers
// can distinguish a clean connection close from a decode failure.
func (fr *Reader) ReadMessage() (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxMessageLen {
		return Message{}, fmt.Errorf("framing: message length %d exceeds max %d", n, maxMessageLen)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Message{}, fmt.Errorf("framing: read body: %w", err)
	}

	var m Message
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&m); err != nil {
		return Message{}, fmt.Errorf("framing: decode: %w", err)
	}
	return m, nil
}

// Dispatch is the tagged-union dispatch switch every framing consumer
// uses instead of open, dynamic verb-named method lookup: enumerate
// verbs as a sum type, match on Verb, call the matching handler.
type Dispatch struct {
	handlers map[Verb]func(Message) error
}

// NewDispatch builds an empty dispatch table.
func NewDispatch() *Dispatch {
	return &Dispatch{handlers: make(map[Verb]func(Message) error)}
}

// On registers a handler for a verb, overwriting any previous one.
func (d *Dispatch) On(v Verb, fn func(Message) error) {
	d.handlers[v] = fn
}

// Handle looks up and invokes the handler for m.Verb, returning an
// error if no handler is registered for that verb.
func (d *Dispatch) Handle(m Message) error {
	fn, ok := d.handlers[m.Verb]
	if !ok {
		return fmt.Errorf("framing: no handler for verb %q", m.Verb)
	}
	return fn(m)
}
