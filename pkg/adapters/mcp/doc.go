// Package mcp exposes the session registry to MCP clients: tools to list, find
// and kill sessions and read counters, plus a roster://sessions resource.
package mcp
