package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes every tool of the registry over the Model Context Protocol
func NewMCPServer(name, version string, reg *Registry) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	for _, spec := range reg.Specs() {
		s.AddTool(mcpTool(spec), mcpHandler(reg, spec.Name))
	}
	return s
}

func mcpTool(spec Spec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Summary())}
	for _, p := range spec.Params {
		popts := []mcp.PropertyOption{}
		if p.Description != "" {
			popts = append(popts, mcp.Description(p.Description))
		}
		if !p.Optional {
			popts = append(popts, mcp.Required())
		}
		switch normalizeType(p.Type) {
		case TypeInteger, TypeNumber:
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		case TypeArray:
			opts = append(opts, mcp.WithArray(p.Name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		}
	}
	return mcp.NewTool(spec.Name, opts...)
}

func mcpHandler(reg *Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := reg.Dispatch(ctx, name, Args(request.GetArguments()))
		if !res.OK() {
			return mcp.NewToolResultError(res.String()), nil
		}
		return mcp.NewToolResultText(res.String()), nil
	}
}
