package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/dialbook/internal/phonebook"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Book    *phonebook.Store
	Metrics *Metrics // optional
	Version string
}

// NewMCPServer creates an MCP server with the phone book tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"dialbook",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dialbook keeps a list of saved phone numbers in E.164 form."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("save_phone",
			mcp.WithDescription("Validate a phone number, normalize it to E.164 and save it."),
			mcp.WithString("number", mcp.Description("Phone number as typed, e.g. (403) 999-5825"), mcp.Required()),
		),
		mcpSavePhone(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_phone",
			mcp.WithDescription("Delete a saved phone number by id or unique id prefix."),
			mcp.WithString("id", mcp.Description("Record id or prefix"), mcp.Required()),
		),
		mcpDeletePhone(deps),
	)

	s.AddTool(
		mcp.NewTool("list_phones",
			mcp.WithDescription("List saved phone numbers, newest first."),
		),
		mcpListPhones(deps),
	)

	s.AddTool(
		mcp.NewTool("check_phone",
			mcp.WithDescription("Report whether a phone number is valid and how it would be stored, without saving it."),
			mcp.WithString("number", mcp.Description("Phone number to check"), mcp.Required()),
		),
		mcpCheckPhone(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"phones://saved",
			"Saved Phone Numbers",
			mcp.WithResourceDescription("Saved phone numbers as JSON, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSaved(deps),
	)

	return s
}

func mcpSavePhone(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		number, err := req.RequireString("number")
		if err != nil {
			return mcpError("number is required"), nil
		}

		rec, err := deps.Book.Save(number)
		deps.Metrics.ObserveSave(err)
		switch {
		case errors.Is(err, phonebook.ErrEmptyInput):
			return mcpError("please enter a phone number"), nil
		case errors.Is(err, phonebook.ErrInvalidFormat):
			return mcpError("please enter a valid phone number"), nil
		case errors.Is(err, phonebook.ErrDuplicateNumber):
			return mcpError("this phone number is already saved"), nil
		case err != nil:
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved %s as %s", deps.Book.Plan().FormatForDisplay(rec.Number), rec.ID)), nil
	}
}

func mcpDeletePhone(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		rec, err := deps.Book.Resolve(id)
		if err != nil {
			return mcpError(fmt.Sprintf("no phone number for %q: %v", id, err)), nil
		}
		if err := deps.Book.Delete(rec.ID); err != nil {
			return mcpError(fmt.Sprintf("failed to delete: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Deleted %s", rec.Number)), nil
	}
}

func mcpListPhones(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(toModels(deps.Book, deps.Book.List()))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal phones: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCheckPhone(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		number, err := req.RequireString("number")
		if err != nil {
			return mcpError("number is required"), nil
		}

		b, err := json.Marshal(Check(deps.Book, number))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSaved(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(toModels(deps.Book, deps.Book.List()))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal phones: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
