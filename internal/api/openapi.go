package api

import (
	"github.com/wolfcito/goat-sub002/pkg/core"
)

// OpenAPI 生成描述全部工具的 OpenAPI 3.1 文档，每个工具对应一个 POST 路径。
func OpenAPI(tools *core.Toolset) map[string]any {
	paths := map[string]any{
		"/api/v1/tools": map[string]any{
			"get": map[string]any{
				"operationId": "listTools",
				"summary":     "List available tools",
				"responses":   map[string]any{"200": map[string]any{"description": "Tool list"}},
			},
		},
	}
	for _, t := range tools.Tools() {
		paths["/api/v1/tools/"+t.Name()] = map[string]any{
			"post": map[string]any{
				"operationId": t.Name(),
				"summary":     t.Description(),
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": t.Parameters().Map()},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Tool result"},
					"422": map[string]any{
						"description": "Input failed validation",
						"content": map[string]any{
							"application/json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Error"}},
						},
					},
					"default": map[string]any{
						"description": "Tool failure",
						"content": map[string]any{
							"application/json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Error"}},
						},
					},
				},
			},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": "goat tools", "version": "1.0.0"},
		"paths":   paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"code":    map[string]any{"type": "string"},
								"message": map[string]any{"type": "string"},
								"fields": map[string]any{
									"type": "array",
									"items": map[string]any{
										"type": "object",
										"properties": map[string]any{
											"field":   map[string]any{"type": "string"},
											"message": map[string]any{"type": "string"},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
