package jsonrpc

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603
	// ErrorCodeServerError is the generic implementation-defined server error.
	// The HTTP surface uses it for transport rejections such as an
	// unsupported HTTP method.
	ErrorCodeServerError ErrorCode = -32000
)

// Message returns the canonical message for well-known codes.
func (c ErrorCode) Message() string {
	switch c {
	case ErrorCodeParseError:
		return "Parse error"
	case ErrorCodeInvalidRequest:
		return "Invalid Request"
	case ErrorCodeMethodNotFound:
		return "Method not found"
	case ErrorCodeInvalidParams:
		return "Invalid params"
	case ErrorCodeInternalError:
		return "Internal error"
	case ErrorCodeServerError:
		return "Server error"
	}
	return "Unknown error"
}
