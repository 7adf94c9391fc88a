package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecordTerminatesWithSeparator(t *testing.T) {
	bs, err := EncodeRecord(HandshakeRequest{Protocol: ProtocolName, Version: ProtocolVersion})
	require.NoError(t, err)

	assert.Equal(t, `{"protocol":"json","version":1}`+"\x1e", string(bs))
}

func TestEncodeInvocation(t *testing.T) {
	args := []json.RawMessage{json.RawMessage(`"abc"`), json.RawMessage(`"RustBot"`)}

	bs, err := EncodeInvocation("", "Register", args)
	require.NoError(t, err)
	assert.Equal(t, `{"type":1,"target":"Register","arguments":["abc","RustBot"]}`+"\x1e", string(bs))

	bs, err = EncodeInvocation("7", "Register", args)
	require.NoError(t, err)
	assert.Equal(t, `{"type":1,"invocationId":"7","target":"Register","arguments":["abc","RustBot"]}`+"\x1e", string(bs))
}

func TestEncodeInvocationWithoutArguments(t *testing.T) {
	bs, err := EncodeInvocation("", "EndGame", nil)
	require.NoError(t, err)

	assert.Equal(t, `{"type":1,"target":"EndGame","arguments":[]}`+"\x1e", string(bs))
}

func TestEncodeCompletion(t *testing.T) {
	bs, err := EncodeCompletion("3", nil, "")
	require.NoError(t, err)
	assert.Equal(t, `{"type":3,"invocationId":"3"}`+"\x1e", string(bs))

	bs, err = EncodeCompletion("3", nil, "boom")
	require.NoError(t, err)
	assert.Equal(t, `{"type":3,"invocationId":"3","error":"boom"}`+"\x1e", string(bs))

	bs, err = EncodeCompletion("3", json.RawMessage(`42`), "")
	require.NoError(t, err)
	assert.Equal(t, `{"type":3,"invocationId":"3","result":42}`+"\x1e", string(bs))
}

func TestEncodePing(t *testing.T) {
	bs, err := EncodePing()
	require.NoError(t, err)

	assert.Equal(t, `{"type":6}`+"\x1e", string(bs))
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":1,"target":"ReceiveBotState","arguments":[{"x":3}]}`))
	require.NoError(t, err)

	assert.Equal(t, InvocationMessage, msg.Type)
	assert.Equal(t, "ReceiveBotState", msg.Target)
	require.Len(t, msg.Arguments, 1)
	assert.JSONEq(t, `{"x":3}`, string(msg.Arguments[0]))

	msg, err = ParseMessage([]byte(`{"type":7,"error":"bye","allowReconnect":true}`))
	require.NoError(t, err)
	assert.Equal(t, CloseMessage, msg.Type)
	assert.Equal(t, "bye", msg.Error)
	assert.True(t, msg.AllowReconnect)
}

func TestParseMessageRejectsMalformedRecords(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`{}`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestRecordReaderSplitsRecords(t *testing.T) {
	r := &RecordReader{}
	r.Feed([]byte("{}\x1e{\"type\":6}\x1e{\"ty"))

	record, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, "{}", string(record))

	record, ok = r.Next()
	require.True(t, ok)
	assert.Equal(t, `{"type":6}`, string(record))

	_, ok = r.Next()
	assert.False(t, ok)
	assert.Equal(t, 4, r.Pending())

	r.Feed([]byte("pe\":6}\x1e"))
	record, ok = r.Next()
	require.True(t, ok)
	assert.Equal(t, `{"type":6}`, string(record))
	assert.Equal(t, 0, r.Pending())
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "Invocation", InvocationMessage.String())
	assert.Equal(t, "Close", CloseMessage.String())
	assert.Equal(t, "Unknown", MessageType(42).String())
}
