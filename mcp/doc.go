// Package mcp contains the Model Context Protocol data types and method names
// used by this server. It mirrors the wire representation of the protocol
// with exported structs carrying json tags.
//
// The package holds no transport logic. The serverless adapter, the HTTP
// transport and the stdio transport all marshal these types; the engine
// package maps JSON-RPC methods onto them.
//
// Only the slice of the protocol a stateless server can honor is modeled:
// initialize, ping, tools, resources, prompts and logging. Server-initiated
// requests (sampling, elicitation, roots) need a live session and are absent.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
package mcp
