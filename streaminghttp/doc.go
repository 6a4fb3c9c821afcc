// Package streaminghttp serves MCP JSON-RPC messages over HTTP POST without
// keeping any session state on the server.
//
// Every POST carries exactly one JSON-RPC message and is answered on the
// same response. Requests get a JSON body, or a single Server-Sent Event
// frame when the client only accepts text/event-stream. Notifications and
// client responses are acknowledged with 202. Batches are rejected.
//
// The Mcp-Session-Id header is a correlation token only: initialize mints
// one when the caller did not supply it, and later requests echo whatever
// the client sends. Nothing is looked up by it.
//
// Example (mount in net/http):
//
//	h, err := streaminghttp.New(server, streaminghttp.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	mux := http.NewServeMux()
//	mux.Handle("POST /mcp", h)
//	http.ListenAndServe(":8080", mux)
package streaminghttp
