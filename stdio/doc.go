// Package stdio serves MCP over newline-delimited JSON-RPC on a pair of
// streams, stdin and stdout by default. It is meant for running the server
// as a local subprocess of an MCP client.
//
// Each line is one JSON-RPC message. Requests are answered in order with one
// response line each; notifications and client responses produce no output.
// Like the HTTP transport, every message runs through a fresh engine and no
// session state is kept.
//
// Example:
//
//	h := stdio.NewHandler(srv, stdio.WithLogger(log))
//	if err := h.Serve(ctx); err != nil { log.Error("stdio.serve.fail", "err", err) }
package stdio
