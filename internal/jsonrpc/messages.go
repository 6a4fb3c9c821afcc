package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// ProtocolVersion is the only accepted value of the jsonrpc member.
const ProtocolVersion = "2.0"

// ErrBatchUnsupported is returned by DecodeMessage for JSON arrays.
var ErrBatchUnsupported = errors.New("JSON-RPC batch arrays are not supported")

// AnyMessage is a decoded envelope: a request, a notification or a response
// sent back by the client.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request is a call (ID set) or a notification (ID absent).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response always carries an id member, null when the request id was
// unreadable.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// NewResultResponse marshals result into a success response.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: ProtocolVersion, Result: b, ID: id}, nil
}

// NewErrorResponse builds an error response. An empty message falls back to
// the code's canonical text.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	if message == "" {
		message = code.Message()
	}
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error:          &Error{Code: code, Message: message, Data: data},
		ID:             id,
	}
}

// Error is the error member of a response.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// DecodeMessage parses one envelope. Arrays yield ErrBatchUnsupported. The
// envelope must declare version 2.0 and carry either a method or exactly one
// of result and error.
func DecodeMessage(raw []byte) (*AnyMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty message")
	}
	if raw[0] == '[' {
		return nil, ErrBatchUnsupported
	}
	if raw[0] != '{' {
		return nil, errors.New("message must be a JSON object")
	}

	var (
		msg        AnyMessage
		hasVersion bool
		hasResult  bool
		errRaw     []byte
	)
	err := jsonparser.ObjectEach(raw, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "jsonrpc":
			if vt != jsonparser.String {
				return fmt.Errorf("jsonrpc must be a string")
			}
			msg.JSONRPCVersion = string(value)
			hasVersion = true
		case "method":
			if vt != jsonparser.String {
				return fmt.Errorf("method must be a string")
			}
			s, err := jsonparser.ParseString(value)
			if err != nil {
				return err
			}
			msg.Method = s
		case "params":
			if vt == jsonparser.Null {
				return nil
			}
			if vt != jsonparser.Object && vt != jsonparser.Array {
				return fmt.Errorf("params must be an object or array")
			}
			msg.Params = json.RawMessage(bytes.Clone(value))
		case "result":
			hasResult = true
			msg.Result = json.RawMessage(bytes.Clone(rawValue(value, vt)))
		case "error":
			if vt != jsonparser.Null {
				errRaw = value
			}
		case "id":
			var id RequestID
			if err := id.UnmarshalJSON(rawValue(value, vt)); err != nil {
				return err
			}
			msg.ID = &id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
	}

	if !hasVersion || msg.JSONRPCVersion != ProtocolVersion {
		return nil, fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, msg.JSONRPCVersion)
	}
	if errRaw != nil {
		var e Error
		if err := json.Unmarshal(errRaw, &e); err != nil {
			return nil, fmt.Errorf("invalid error member: %w", err)
		}
		msg.Error = &e
	}
	hasError := msg.Error != nil
	switch {
	case msg.Method != "" && (hasResult || hasError):
		return nil, errors.New("request message cannot have result or error fields")
	case msg.Method == "" && hasResult && hasError:
		return nil, errors.New("response message cannot have both result and error fields")
	case msg.Method == "" && !hasResult && !hasError:
		return nil, errors.New("message has neither a method nor a result or error")
	}
	return &msg, nil
}

// rawValue restores the quotes jsonparser strips from string values.
func rawValue(value []byte, vt jsonparser.ValueType) []byte {
	if vt != jsonparser.String {
		return value
	}
	out := make([]byte, 0, len(value)+2)
	out = append(out, '"')
	out = append(out, value...)
	return append(out, '"')
}

// Type returns "request", "notification" or "response".
func (m *AnyMessage) Type() string {
	switch {
	case m.Method == "":
		return "response"
	case m.ID.IsNil():
		return "notification"
	default:
		return "request"
	}
}

// AsRequest returns nil for responses.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params, ID: m.ID}
}
