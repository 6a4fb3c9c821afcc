// Package mcpservice exposes the building blocks for the server side of the
// protocol: capability interfaces consumed by the engine, a functional-option
// server constructor, and static containers for tools, resources and prompts.
//
// Every capability is stateless. The serverless adapter builds a fresh server
// per invocation, so containers are populated once at construction time and
// never mutated while a request is in flight.
//
// Quick start:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//	echo := mcpservice.NewTool[EchoArgs]("echo",
//	    func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//	        return w.AppendText(r.Args().Message)
//	    },
//	    mcpservice.WithToolDescription("Echo a message back to the caller"),
//	)
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//	    mcpservice.WithToolsCapability(mcpservice.NewToolsContainer(echo)),
//	)
package mcpservice
