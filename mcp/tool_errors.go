package mcp

import (
	"errors"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/adterr"
)

// toolErrorResult renders err for an isError result. ADT errors become their
// JSON record; anything else is wrapped as an Internal record so callers
// always receive the same shape.
func toolErrorResult(err error) *mcpgo.CallToolResult {
	return mcpgo.NewToolResultError(renderToolError(err))
}

func renderToolError(err error) string {
	var ae *adterr.Error
	if errors.As(err, &ae) {
		return ae.JSON()
	}
	return adterr.New("", "", adterr.Internal, strings.TrimSpace(err.Error())).JSON()
}

// argError reports a missing or malformed tool argument.
func argError(tool, format string, args ...any) error {
	return adterr.Newf(tool, "", adterr.Internal, format, args...)
}
