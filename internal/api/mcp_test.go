package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/dialbook/internal/phonebook"
	"github.com/kalambet/dialbook/internal/storage"
)

// --- helpers ---

func newTestBook(t *testing.T) *phonebook.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err, "opening store")
	t.Cleanup(func() { store.Close() })

	book := phonebook.New(store)
	book.Load()
	return book
}

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	return MCPDeps{Book: newTestBook(t)}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "no content in result")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_SavePhone(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSavePhone(deps)

	result, err := handler(context.Background(), makeCallToolRequest("save_phone", map[string]interface{}{
		"number": "(403) 999-5825",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))
	assert.Contains(t, toolText(t, result), "+1 (403) 999-5825")

	phones := deps.Book.List()
	require.Len(t, phones, 1)
	assert.Equal(t, "+14039995825", phones[0].Number)
}

func TestMCPTool_SavePhone_Rejections(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSavePhone(deps)

	tests := []struct {
		name   string
		number string
		want   string
	}{
		{"blank", "   ", "please enter a phone number"},
		{"invalid", "12345", "please enter a valid phone number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("save_phone", map[string]interface{}{
				"number": tt.number,
			}))
			require.NoError(t, err)
			require.True(t, result.IsError, "expected error result")
			assert.Equal(t, tt.want, toolText(t, result))
		})
	}

	assert.Zero(t, deps.Book.Len())
}

func TestMCPTool_SavePhone_Duplicate(t *testing.T) {
	deps := newTestMCPDeps(t)
	_, err := deps.Book.Save("4039995825")
	require.NoError(t, err)

	result, err := mcpSavePhone(deps)(context.Background(), makeCallToolRequest("save_phone", map[string]interface{}{
		"number": "+1 403-999-5825",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError, "expected error result")
	assert.Equal(t, "this phone number is already saved", toolText(t, result))
}

func TestMCPTool_SavePhone_MissingArgument(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpSavePhone(deps)(context.Background(), makeCallToolRequest("save_phone", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPTool_DeletePhone_ByPrefix(t *testing.T) {
	deps := newTestMCPDeps(t)
	rec, err := deps.Book.Save("4039995825")
	require.NoError(t, err)

	result, err := mcpDeletePhone(deps)(context.Background(), makeCallToolRequest("delete_phone", map[string]interface{}{
		"id": rec.ID[:8],
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))
	assert.Zero(t, deps.Book.Len())
}

func TestMCPTool_DeletePhone_Unknown(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpDeletePhone(deps)(context.Background(), makeCallToolRequest("delete_phone", map[string]interface{}{
		"id": "nope",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError, "expected error result for unknown id")
}

func TestMCPTool_ListPhones(t *testing.T) {
	deps := newTestMCPDeps(t)
	for _, n := range []string{"4039995825", "7805551234"} {
		_, err := deps.Book.Save(n)
		require.NoError(t, err, "seeding %s", n)
	}

	result, err := mcpListPhones(deps)(context.Background(), makeCallToolRequest("list_phones", nil))
	require.NoError(t, err)

	var phones []PhoneModel
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &phones))
	require.Len(t, phones, 2)
	assert.Equal(t, "+17805551234", phones[0].Number, "newest first")
	assert.Equal(t, "+1 (780) 555-1234", phones[0].Display)
}

func TestMCPTool_ListPhones_Empty(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpListPhones(deps)(context.Background(), makeCallToolRequest("list_phones", nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", toolText(t, result))
}

func TestMCPTool_CheckPhone(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpCheckPhone(deps)(context.Background(), makeCallToolRequest("check_phone", map[string]interface{}{
		"number": "403.999.5825",
	}))
	require.NoError(t, err)

	var got CheckResult
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &got))
	assert.Equal(t, CheckResult{Valid: true, E164: "+14039995825", Display: "+1 (403) 999-5825"}, got)
	assert.Zero(t, deps.Book.Len(), "check must not save")
}

func TestMCPResource_Saved(t *testing.T) {
	deps := newTestMCPDeps(t)
	_, err := deps.Book.Save("4039995825")
	require.NoError(t, err)

	contents, err := mcpResourceSaved(deps)(context.Background(), makeReadResourceRequest("phones://saved"))
	require.NoError(t, err)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "expected TextResourceContents, got %T", contents[0])
	assert.Equal(t, "phones://saved", tc.URI)
	assert.Equal(t, "application/json", tc.MIMEType)
	assert.Contains(t, tc.Text, "+14039995825")
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, NewMCPServer(newTestMCPDeps(t)))
}
