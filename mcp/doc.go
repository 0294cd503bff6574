// Package mcp exposes the ADT, BW and deploy operations as MCP tools.
//
// The server speaks line-delimited JSON-RPC 2.0 over stdio. It answers
// initialize, tools/list and tools/call; notifications are consumed without
// a reply. Protocol framing and the JSON-RPC error codes (-32700 parse
// error, -32600 invalid request, -32601 unknown method, -32602 invalid
// params including an unknown tool) come from mcp-go.
//
// # Tool results
//
// A successful call returns one text content item: the operation's result
// as indented JSON, or the raw text for source reads. A failing call
// returns isError=true. Errors from the ADT layer are rendered as their
// JSON record (category, operation, endpoint, http_status, message,
// sap_error, hint) so agents can branch on the category. A panicking
// handler is reported the same way and never takes the server down.
//
// # Sessions
//
// All tools share one HTTP session. Writes take their lock, perform the
// change and unlock within the same call, so no lock outlives a tool call.
package mcp
