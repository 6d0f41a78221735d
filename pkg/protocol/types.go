// Package protocol holds the wire types of the specsentry RPC surface.
package protocol

import "encoding/json"

// ToolDescriptor advertises one callable tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Result json.RawMessage `json:"result"`
}

type PingResult struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}
