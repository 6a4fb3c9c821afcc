// Command aem-mcp-lambda serves the AEM MCP server from a Lambda function URL.
// Every invocation builds a fresh server, answers one exchange and discards it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/ggoodman/aem-mcp-server-go/internal/app"
	"github.com/ggoodman/aem-mcp-server-go/internal/config"
	"github.com/ggoodman/aem-mcp-server-go/serverless"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a, err := app.New(cfg, os.Stderr, version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lambda.Start(handler(a.Adapter()))
}

func handler(adapter *serverless.Adapter) func(context.Context, events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	return func(ctx context.Context, ev events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		return toResponse(adapter.Handle(ctx, toInvocation(ev))), nil
	}
}

func toInvocation(ev events.LambdaFunctionURLRequest) serverless.Invocation {
	method := ev.RequestContext.HTTP.Method
	path := ev.RawPath
	if path == "" {
		path = ev.RequestContext.HTTP.Path
	}
	headers := make(map[string]string, len(ev.Headers)+1)
	for k, v := range ev.Headers {
		headers[k] = v
	}
	if ua := ev.RequestContext.HTTP.UserAgent; ua != "" {
		if _, ok := headers["user-agent"]; !ok {
			headers["user-agent"] = ua
		}
	}
	return serverless.Invocation{
		Method:          method,
		Path:            path,
		Headers:         headers,
		Body:            ev.Body,
		IsBase64Encoded: ev.IsBase64Encoded,
	}
}

func toResponse(res serverless.Result) events.LambdaFunctionURLResponse {
	return events.LambdaFunctionURLResponse{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
	}
}
