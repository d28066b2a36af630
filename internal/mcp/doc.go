// Package mcp serves the document checks as MCP (Model Context Protocol)
// tools over stdio.
//
// The server speaks JSON-RPC 2.0, one message per line:
//   - initialize: protocol handshake
//   - tools/list: enumerate available tools
//   - tools/call: execute a tool with arguments
//   - ping: health check
//
// # Tools
//
//   - document_check_readability: run the intake readability check on a file
//   - document_ocr: raw OCR text and mean confidence of an image
//   - supplier_requirements: documents required for a supplier type
//
// Tool failures are returned as JSON-RPC errors with code -32000 and the Go
// error string in data. Stdout carries the protocol, so logging goes to
// stderr.
package mcp
