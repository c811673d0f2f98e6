package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Request(t *testing.T) {
	t.Run("string identifier", func(t *testing.T) {
		msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":"req-1","method":"tools/list"}`))
		require.Nil(t, perr)
		assert.Equal(t, KindRequest, msg.Kind)
		require.NotNil(t, msg.ID)
		assert.Equal(t, `"req-1"`, msg.ID.Key())
		assert.Equal(t, "tools/list", msg.Method)
	})

	t.Run("numeric identifier", func(t *testing.T) {
		msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":42,"method":"ping","params":{}}`))
		require.Nil(t, perr)
		assert.Equal(t, KindRequest, msg.Kind)
		assert.Equal(t, "42", msg.ID.Key())
		assert.JSONEq(t, `{}`, string(msg.Params))
	})

	t.Run("string and numeric ids are distinct keys", func(t *testing.T) {
		a, perr := Decode([]byte(`{"jsonrpc":"2.0","id":"1","method":"ping"}`))
		require.Nil(t, perr)
		b, perr := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		require.Nil(t, perr)
		assert.NotEqual(t, a.ID.Key(), b.ID.Key())
	})
}

func TestDecode_Notification(t *testing.T) {
	msg, perr := Decode([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.Nil(t, perr)
	assert.Equal(t, KindNotification, msg.Kind)
	assert.Nil(t, msg.ID)
	assert.Equal(t, "notifications/initialized", msg.Method)
}

func TestDecode_Response(t *testing.T) {
	msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`))
	require.Nil(t, perr)
	assert.Equal(t, KindResponse, msg.Kind)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Result))
}

func TestDecode_ParseError(t *testing.T) {
	msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":1,`))
	require.NotNil(t, perr)
	assert.Equal(t, CodeParseError, perr.Code)
	assert.Nil(t, msg)
}

func TestDecode_InvalidRequest(t *testing.T) {
	t.Run("missing method", func(t *testing.T) {
		msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":5}`))
		require.NotNil(t, perr)
		assert.Equal(t, CodeInvalidRequest, perr.Code)
		require.NotNil(t, msg)
		assert.Equal(t, "5", msg.ID.Key())
	})

	t.Run("wrong version tag", func(t *testing.T) {
		msg, perr := Decode([]byte(`{"jsonrpc":"1.0","id":5,"method":"ping"}`))
		require.NotNil(t, perr)
		assert.Equal(t, CodeInvalidRequest, perr.Code)
		require.NotNil(t, msg)
		assert.Equal(t, "5", msg.ID.Key())
	})

	t.Run("boolean identifier salvages nothing", func(t *testing.T) {
		msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":true,"method":"ping"}`))
		require.NotNil(t, perr)
		assert.Equal(t, CodeInvalidRequest, perr.Code)
		assert.Nil(t, msg)
	})

	t.Run("object identifier salvages nothing", func(t *testing.T) {
		msg, perr := Decode([]byte(`{"jsonrpc":"2.0","id":{"a":1},"method":"ping"}`))
		require.NotNil(t, perr)
		assert.Equal(t, CodeInvalidRequest, perr.Code)
		assert.Nil(t, msg)
	})
}

func TestEncode_IdentifierEcho(t *testing.T) {
	// decode(encode(respond_to(r))) carries exactly r's identifier.
	wires := []string{
		`{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":99,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":-3,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":1.5,"method":"tools/list"}`,
	}
	for _, wire := range wires {
		req, perr := Decode([]byte(wire))
		require.Nil(t, perr, wire)

		data, err := Encode(NewResult(req.ID, map[string]string{"status": "ok"}))
		require.NoError(t, err)

		resp, perr := Decode(data)
		require.Nil(t, perr)
		assert.Equal(t, KindResponse, resp.Kind)
		require.NotNil(t, resp.ID)
		assert.True(t, resp.ID.Equal(*req.ID), "identifier must round-trip for %s", wire)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	req, perr := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.Nil(t, perr)

	first, err := Encode(NewResult(req.ID, struct{}{}))
	require.NoError(t, err)
	second, err := Encode(NewResult(req.ID, struct{}{}))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncode_ErrorResponse(t *testing.T) {
	t.Run("null identifier when none extractable", func(t *testing.T) {
		data, err := Encode(NewErrorResponse(nil, NewError(CodeParseError, "parse error")))
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, string(data))
	})

	t.Run("result and error are mutually exclusive", func(t *testing.T) {
		data, err := Encode(NewErrorResponse(nil, NewError(CodeMethodNotFound, "nope")))
		require.NoError(t, err)
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &raw))
		_, hasResult := raw["result"]
		assert.False(t, hasResult)
		_, hasError := raw["error"]
		assert.True(t, hasError)
	})
}

func TestID_UnmarshalRejectsNull(t *testing.T) {
	var id ID
	assert.Error(t, id.UnmarshalJSON([]byte(`null`)))
	assert.Error(t, id.UnmarshalJSON([]byte(`[1]`)))
	assert.NoError(t, id.UnmarshalJSON([]byte(`"x"`)))
}
