package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/inverif/internal/catalog"
	"github.com/ironsheep/inverif/internal/ocr"
	"github.com/ironsheep/inverif/internal/readability"
)

var ErrMissingPath = errors.New("path is required")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall wraps the tool result in MCP's content format:
//
//	{"content": [{"type": "text", "text": "<JSON result>"}]}
func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("mcp", "tool failed", map[string]interface{}{"tool": params.Name, "error": err.Error()})
		return errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "document_check_readability":
		return s.handleCheckReadability(ctx, args)
	case "document_ocr":
		return s.handleOCR(ctx, args)
	case "supplier_requirements":
		return handleSupplierRequirements(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type documentArgs struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}

func parseDocumentArgs(args json.RawMessage) (documentArgs, error) {
	var a documentArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return a, err
		}
	}
	if a.Path == "" {
		return a, ErrMissingPath
	}
	return a, nil
}

type readabilityReport struct {
	Path string `json:"path"`
	readability.Result
}

func (s *Server) handleCheckReadability(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseDocumentArgs(args)
	if err != nil {
		return nil, err
	}
	up, err := readability.LoadFile(a.Path, catalog.DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	res := s.checker.WithLanguages(ocr.ParseLanguages(a.Language)).Check(ctx, up)
	return readabilityReport{Path: a.Path, Result: res}, nil
}

type ocrReport struct {
	Path       string  `json:"path"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      int     `json:"words"`
}

func (s *Server) handleOCR(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseDocumentArgs(args)
	if err != nil {
		return nil, err
	}
	res, err := ocr.ExtractText(ctx, s.engine, a.Path, a.Language)
	if err != nil {
		return nil, err
	}
	return ocrReport{Path: a.Path, Text: res.Text, Confidence: res.Confidence, Words: len(res.Words)}, nil
}

type supplierArgs struct {
	SupplierType string `json:"supplier_type"`
}

type supplierReport struct {
	SupplierType catalog.SupplierType   `json:"supplier_type"`
	Documents    []catalog.DocumentType `json:"documents"`
	Extensions   []string               `json:"accepted_extensions"`
	MaxSizeBytes int64                  `json:"max_size_bytes"`
}

func handleSupplierRequirements(args json.RawMessage) (interface{}, error) {
	var a supplierArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}
	t, err := catalog.ParseSupplierType(a.SupplierType)
	if err != nil {
		return nil, err
	}
	return supplierReport{
		SupplierType: t,
		Documents:    catalog.Documents(t),
		Extensions:   catalog.AcceptedExtensions(),
		MaxSizeBytes: catalog.DefaultMaxUploadBytes,
	}, nil
}
