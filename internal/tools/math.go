// Package tools holds the illustrative tools exposed by the example services.
package tools

import (
	"context"
	"strconv"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-examples/internal/toolhost"
)

// Operands are the inputs of the arithmetic tools.
type Operands struct {
	A int `json:"a" jsonschema:"the first operand"`
	B int `json:"b" jsonschema:"the second operand"`
}

// ArithmeticResult is the structured output of the arithmetic tools.
type ArithmeticResult struct {
	Result int `json:"result" jsonschema:"the computed value"`
}

// RegisterMath adds the add and multiply tools.
func RegisterMath(h *toolhost.Host) {
	toolhost.AddTool(h, "add", "Add two numbers", arithmetic(func(a, b int) int { return a + b }))
	toolhost.AddTool(h, "multiply", "Multiply two numbers", arithmetic(func(a, b int) int { return a * b }))
}

func arithmetic(op func(a, b int) int) sdk.ToolHandlerFor[Operands, ArithmeticResult] {
	return func(ctx context.Context, req *sdk.CallToolRequest, in Operands) (*sdk.CallToolResult, ArithmeticResult, error) {
		out := ArithmeticResult{Result: op(in.A, in.B)}
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: strconv.Itoa(out.Result)}},
		}, out, nil
	}
}
