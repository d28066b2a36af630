package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to a .pdf, .jpg, .jpeg or .png file",
	}
}

func languageProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Tesseract language string, e.g. \"fra+eng\". Default fra+eng",
		"default":     "fra+eng",
	}
}

// ToolDefinitions returns all available tools
func ToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "document_check_readability",
			Description: "Run the intake readability check on a document. Images are OCR'd and accepted " +
				"when they contain more than 20 characters of text at a confidence above 60%. " +
				"PDFs are accepted when they parse and have at least one page.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     pathProperty(),
					"language": languageProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_ocr",
			Description: "Extract the raw text of an image with Tesseract and report the mean word confidence (0-100).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     pathProperty(),
					"language": languageProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "supplier_requirements",
			Description: "List the documents a supplier must provide, in form order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"supplier_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"local", "foreign"},
						"description": "Supplier type",
					},
				},
				"required": []string{"supplier_type"},
			},
		},
	}
}
