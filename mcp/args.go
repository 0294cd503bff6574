package mcp

import (
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"pkt.systems/sapadt/ident"
)

func requireString(tool string, req mcpgo.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", argError(tool, "argument %q is required", key)
	}
	return v, nil
}

func requireURI(tool string, req mcpgo.CallToolRequest, key string) (ident.ObjectURI, error) {
	raw, err := requireString(tool, req, key)
	if err != nil {
		return ident.ObjectURI{}, err
	}
	return ident.NewObjectURI(raw)
}

// intArg reads a JSON number argument; JSON numbers decode as float64.
func intArg(req mcpgo.CallToolRequest, key string, def int) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func boolArg(req mcpgo.CallToolRequest, key string, def bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return def
	}
	return v
}
