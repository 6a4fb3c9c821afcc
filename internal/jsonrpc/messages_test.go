package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		msg, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if want, got := "request", msg.Type(); want != got {
			t.Fatalf("unexpected type: want %q got %q", want, got)
		}
		if want, got := "7", msg.ID.String(); want != got {
			t.Fatalf("unexpected id: want %q got %q", want, got)
		}
	})

	t.Run("notification", func(t *testing.T) {
		msg, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if want, got := "notification", msg.Type(); want != got {
			t.Fatalf("unexpected type: want %q got %q", want, got)
		}
	})

	t.Run("batch rejected", func(t *testing.T) {
		_, err := DecodeMessage([]byte(` [{"jsonrpc":"2.0","id":1,"method":"ping"}]`))
		if !errors.Is(err, ErrBatchUnsupported) {
			t.Fatalf("expected ErrBatchUnsupported, got %v", err)
		}
	})

	t.Run("wrong version", func(t *testing.T) {
		if _, err := DecodeMessage([]byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`)); err == nil {
			t.Fatalf("expected version error")
		}
	})

	t.Run("response with result and error", func(t *testing.T) {
		if _, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`)); err == nil {
			t.Fatalf("expected structural error")
		}
	})
}

func TestErrorResponseNullID(t *testing.T) {
	b, err := json.Marshal(NewErrorResponse(nil, ErrorCodeInternalError, "", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"},"id":null}`
	if got := string(b); got != want {
		t.Fatalf("unexpected encoding:\nwant %s\ngot  %s", want, got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	var r Request
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"abc","method":"ping"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(r.ID)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want, got := `"abc"`, string(b); want != got {
		t.Fatalf("unexpected id encoding: want %s got %s", want, got)
	}
}

func TestDecodeMessageFields(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"jsonrpc":"2.0","id":"a\"b","method":"tools\/call","params":{"name":"x"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want, got := "tools/call", msg.Method; want != got {
		t.Fatalf("unexpected method: want %q got %q", want, got)
	}
	if want, got := `a"b`, msg.ID.String(); want != got {
		t.Fatalf("unexpected id: want %q got %q", want, got)
	}
	if want, got := `{"name":"x"}`, string(msg.Params); want != got {
		t.Fatalf("unexpected params: want %s got %s", want, got)
	}

	msg, err = DecodeMessage([]byte(`{"jsonrpc":"2.0","id":2,"method":"ping","params":null}`))
	if err != nil {
		t.Fatalf("null params: %v", err)
	}
	if msg.Params != nil {
		t.Fatalf("expected null params to be dropped, got %s", msg.Params)
	}

	msg, err = DecodeMessage([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"nope"}}`))
	if err != nil {
		t.Fatalf("response: %v", err)
	}
	if msg.AsRequest() != nil || msg.Type() != "response" {
		t.Fatalf("expected a response, got %s", msg.Type())
	}
	if want, got := ErrorCodeMethodNotFound, msg.Error.Code; want != got {
		t.Fatalf("unexpected code: want %d got %d", want, got)
	}
}

func TestDecodeMessageRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":        `   `,
		"scalar":       `42`,
		"truncated":    `{"jsonrpc":"2.0","id":1,"method":"ping"`,
		"no version":   `{"id":1,"method":"ping"}`,
		"method type":  `{"jsonrpc":"2.0","id":1,"method":7}`,
		"params type":  `{"jsonrpc":"2.0","id":1,"method":"ping","params":"x"}`,
		"id type":      `{"jsonrpc":"2.0","id":{},"method":"ping"}`,
		"empty object": `{"jsonrpc":"2.0","id":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(raw)); err == nil {
				t.Fatalf("expected %s to be rejected", raw)
			}
		})
	}
}
