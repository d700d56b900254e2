package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer registers the voiceboard tools on a fresh MCP server.
func NewServer(svc Service, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "voiceboard",
		Version: version,
	}, &mcpsdk.ServerOptions{})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolBoardSnapshot,
		Description: "Show the kanban board grouped by status (Not started, In progress, Done) with deadlines and assignees.",
	}, toolHandler(svc, HandleBoardSnapshot))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolExtractOperations,
		Description: "Interpret a spoken request as board operations (create, update, delete, rename, comment, reposition) without applying them. Shows dropped candidates and why.",
	}, toolHandler(svc, HandleExtractOperations))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolApplyTranscript,
		Description: "Interpret a spoken request and apply the resulting operations to the board. Set dry_run to only plan. Returns per-operation outcomes.",
	}, toolHandler(svc, HandleApplyTranscript))

	return server
}

// Serve runs the server over stdin/stdout until the client disconnects.
func Serve(ctx context.Context, svc Service, version string) error {
	if err := NewServer(svc, version).Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// toolHandler adapts a Markdown-returning handler. Tool failures are returned
// as error results so the assistant can read them.
func toolHandler[P any](svc Service, handle func(context.Context, Service, P) (string, error)) mcpsdk.ToolHandlerFor[P, any] {
	return func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[P]) (*mcpsdk.CallToolResultFor[any], error) {
		text, err := handle(ctx, svc, params.Arguments)
		if err != nil {
			return &mcpsdk.CallToolResultFor[any]{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		}, nil
	}
}
