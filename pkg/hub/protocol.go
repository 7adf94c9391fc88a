package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HandshakeRequest is the first record a client writes after connecting.
type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// HandshakeResponse is the first record the hub writes back. A non-empty
// Error rejects the connection.
type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// Message is the union of every record exchanged after the handshake.
type Message struct {
	Type           MessageType       `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

// invocationRecord always carries an arguments array, even when empty.
type invocationRecord struct {
	Type         MessageType       `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target"`
	Arguments    []json.RawMessage `json:"arguments"`
}

type completionRecord struct {
	Type         MessageType     `json:"type"`
	InvocationID string          `json:"invocationId"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type pingRecord struct {
	Type MessageType `json:"type"`
}

// Invocation is a named method call with its ordered, still encoded
// arguments.
type Invocation struct {
	ID        string
	Target    string
	Arguments []json.RawMessage
}

// EncodeRecord serializes v as JSON followed by the record separator.
func EncodeRecord(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	// Encode terminates with a newline, replace it with the separator
	bs := buf.Bytes()
	out := make([]byte, len(bs))
	copy(out, bs)
	out[len(out)-1] = RecordSeparator
	return out, nil
}

// EncodeInvocation builds an invocation record. An empty id makes it a
// fire-and-forget send.
func EncodeInvocation(id string, target string, args []json.RawMessage) ([]byte, error) {
	if args == nil {
		args = []json.RawMessage{}
	}
	return EncodeRecord(invocationRecord{
		Type:         InvocationMessage,
		InvocationID: id,
		Target:       target,
		Arguments:    args,
	})
}

// EncodeCompletion builds a completion record answering the given invocation.
func EncodeCompletion(id string, result json.RawMessage, errMsg string) ([]byte, error) {
	return EncodeRecord(completionRecord{
		Type:         CompletionMessage,
		InvocationID: id,
		Result:       result,
		Error:        errMsg,
	})
}

// EncodePing builds a keep-alive record.
func EncodePing() ([]byte, error) {
	return EncodeRecord(pingRecord{Type: PingMessage})
}

// ParseMessage decodes a single record without its separator.
func ParseMessage(record []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(record, &msg); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	if msg.Type == 0 {
		return nil, fmt.Errorf("record has no message type")
	}
	return &msg, nil
}

// RecordReader splits a byte stream into separator-terminated records,
// keeping incomplete tails until more data arrives.
type RecordReader struct {
	buf []byte
}

// Feed appends received bytes.
func (r *RecordReader) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Next returns the next complete record, if any.
func (r *RecordReader) Next() ([]byte, bool) {
	i := bytes.IndexByte(r.buf, RecordSeparator)
	if i < 0 {
		return nil, false
	}
	record := r.buf[:i]
	r.buf = r.buf[i+1:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return record, true
}

// Pending returns the number of buffered bytes that do not yet form a record.
func (r *RecordReader) Pending() int {
	return len(r.buf)
}
