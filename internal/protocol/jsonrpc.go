package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC version tag carried by every message.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Server-defined error codes (reserved range -32000..-32099)
const (
	CodeNotFound       = -32001 // Requested symbol/file/resource not in the index
	CodeNotInitialized = -32002 // Request received before the initialize handshake
	CodeNotIndexed     = -32003 // Project has no index yet
)

// Error is a JSON-RPC 2.0 error object. It implements error so handlers can
// return it directly.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error object with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an error object with a formatted message.
func Errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ID is a request identifier: a JSON string or number. The raw bytes are
// kept verbatim so encoding echoes exactly what the peer sent.
type ID struct {
	raw json.RawMessage
}

// UnmarshalJSON accepts a JSON string or number; anything else is rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("identifier must be a string or number")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
	case '{', '[', 't', 'f', 'n':
		return fmt.Errorf("identifier must be a string or number")
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("identifier must be a string or number")
		}
	}
	id.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// MarshalJSON emits the identifier exactly as it was received.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.raw == nil {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// Key returns the canonical string form used to index the pending-request
// table. Distinct JSON values map to distinct keys.
func (id ID) Key() string {
	return string(id.raw)
}

// Equal reports whether two identifiers are the same JSON value.
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id.raw, other.raw)
}

// MessageKind tags the message union.
type MessageKind int

const (
	KindRequest MessageKind = iota
	KindNotification
	KindResponse
)

// Message is the decoded form of one framed wire message.
type Message struct {
	Kind   MessageKind
	ID     *ID // nil for notifications
	Method string
	Params json.RawMessage

	// Response fields (only when Kind == KindResponse)
	Result json.RawMessage
	Err    *Error
}

// envelope is the raw wire shape shared by all three message kinds.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// looseEnvelope is used to salvage an identifier from a payload whose id
// field failed strict decoding elsewhere in the envelope.
type looseEnvelope struct {
	ID json.RawMessage `json:"id"`
}

// Decode parses framed bytes into a Message.
//
// On failure the returned *Error carries CodeParseError for syntactically
// broken payloads and CodeInvalidRequest for schema violations. For
// InvalidRequest failures the returned Message may be non-nil with only ID
// populated, so the caller can echo the identifier in its error response.
func Decode(data []byte) (*Message, *Error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Distinguish a bad identifier (valid JSON, invalid envelope) from
		// broken JSON.
		if json.Valid(data) {
			return salvageID(data), NewError(CodeInvalidRequest, "invalid request: "+err.Error())
		}
		return nil, NewError(CodeParseError, "parse error: "+err.Error())
	}

	if env.JSONRPC != Version {
		return &Message{ID: env.ID}, Errorf(CodeInvalidRequest, "unsupported jsonrpc version %q", env.JSONRPC)
	}

	// A response has result or error and no method.
	if env.Method == "" {
		if env.Result != nil || env.Error != nil {
			return &Message{Kind: KindResponse, ID: env.ID, Result: env.Result, Err: env.Error}, nil
		}
		return &Message{ID: env.ID}, NewError(CodeInvalidRequest, "missing method")
	}

	if env.ID == nil {
		return &Message{Kind: KindNotification, Method: env.Method, Params: env.Params}, nil
	}
	return &Message{Kind: KindRequest, ID: env.ID, Method: env.Method, Params: env.Params}, nil
}

// salvageID pulls a usable identifier out of an otherwise invalid payload.
func salvageID(data []byte) *Message {
	var loose looseEnvelope
	if err := json.Unmarshal(data, &loose); err != nil || loose.ID == nil {
		return nil
	}
	var id ID
	if err := id.UnmarshalJSON(loose.ID); err != nil {
		return nil
	}
	return &Message{ID: &id}
}

// Response is an outgoing result or error addressed to a request identifier.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *ID         `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// NewResult builds a success response echoing the request identifier.
func NewResult(id *ID, result interface{}) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds an error response echoing the request identifier.
// A nil identifier encodes as null, used when no id was extractable.
func NewErrorResponse(id *ID, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// Encode serializes a response for the framer. Encoding is deterministic:
// encoding the same response twice yields identical bytes.
func Encode(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}
