package api

import (
	"net/http"

	"github.com/mattjoyce/hookbox/internal/message"
)

// handleOpenAPI serves the OpenAPI document consumed by /docs/.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildOpenAPIDoc(s.auth.Enabled()))
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for every route. Read
// endpoints declare bearer security only when read auth is on.
func buildOpenAPIDoc(readAuth bool) map[string]any {
	var readSecurity []any
	if readAuth {
		readSecurity = []any{map[string]any{"BearerAuth": []string{}}}
	}

	readOp := func(id, summary string, params []any, schema string) map[string]any {
		op := map[string]any{
			"operationId": id,
			"summary":     summary,
			"tags":        []string{"messages"},
			"responses": map[string]any{
				"200": jsonResponse("OK", schema),
				"401": jsonResponse("Missing or invalid bearer token", "Error"),
				"403": jsonResponse("Insufficient scope", "Error"),
			},
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		if readSecurity != nil {
			op["security"] = readSecurity
		}
		return op
	}

	paths := map[string]any{
		"/": map[string]any{
			"get": map[string]any{
				"operationId": "root",
				"summary":     "Service banner",
				"tags":        []string{"ops"},
				"responses":   map[string]any{"200": jsonResponse("Service is running", "")},
			},
		},
		"/webhook": map[string]any{
			"post": map[string]any{
				"operationId": "receiveWebhook",
				"summary":     "Ingest a signed message",
				"tags":        []string{"webhook"},
				"parameters": []any{map[string]any{
					"name":        "X-Signature",
					"in":          "header",
					"required":    true,
					"description": "Hex HMAC-SHA256 of the raw body",
					"schema":      map[string]any{"type": "string"},
				}},
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{"schema": ref("WebhookPayload")},
					},
				},
				"responses": map[string]any{
					"200": jsonResponse("Created or duplicate", "Status"),
					"401": jsonResponse("Missing or invalid signature", "Error"),
					"413": jsonResponse("Body too large", "Error"),
					"422": jsonResponse("Validation failed", "Error"),
					"500": jsonResponse("Storage fault", "Error"),
				},
			},
		},
		"/messages": map[string]any{
			"get": readOp("listMessages", "List stored messages", []any{
				queryParam("limit", "integer", "Page size, 1 to 100 (default 50)"),
				queryParam("offset", "integer", "Rows to skip (default 0)"),
				queryParam("from", "string", "Exact sender match"),
				queryParam("since", "string", "Inclusive lower bound on ts"),
				queryParam("q", "string", "Substring match on text"),
			}, "MessagePage"),
		},
		"/stats": map[string]any{
			"get": readOp("getStats", "Aggregate statistics", nil, "Stats"),
		},
		"/events": map[string]any{
			"get": readOp("streamEvents", "Live activity as server-sent events", nil, ""),
		},
		"/health/live": map[string]any{
			"get": map[string]any{
				"operationId": "live",
				"tags":        []string{"ops"},
				"responses":   map[string]any{"200": jsonResponse("Process is up", "Status")},
			},
		},
		"/health/ready": map[string]any{
			"get": map[string]any{
				"operationId": "ready",
				"tags":        []string{"ops"},
				"responses": map[string]any{
					"200": jsonResponse("Ready", "Status"),
					"503": jsonResponse("Not ready", "Status"),
				},
			},
		},
		"/metrics": map[string]any{
			"get": map[string]any{
				"operationId": "metrics",
				"tags":        []string{"ops"},
				"responses": map[string]any{"200": map[string]any{
					"description": "Prometheus text exposition",
					"content":     map[string]any{"text/plain": map[string]any{}},
				}},
			},
		},
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   ServiceName,
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas(),
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func schemas() map[string]any {
	str := map[string]any{"type": "string"}
	integer := map[string]any{"type": "integer"}
	nullableStr := map[string]any{"type": []string{"string", "null"}}

	msg := map[string]any{
		"type":     "object",
		"required": []string{"message_id", "from", "to", "ts"},
		"properties": map[string]any{
			"message_id": str,
			"from":       str,
			"to":         str,
			"ts":         str,
			"text":       map[string]any{"type": []string{"string", "null"}, "maxLength": 4096},
		},
	}

	return map[string]any{
		"WebhookPayload": msg,
		"Message":        msg,
		"MessagePage": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"data":   map[string]any{"type": "array", "items": ref("Message")},
				"total":  integer,
				"limit":  map[string]any{"type": "integer", "minimum": 1, "maximum": message.MaxLimit},
				"offset": map[string]any{"type": "integer", "minimum": 0},
			},
		},
		"Stats": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"total_messages": integer,
				"senders_count":  integer,
				"messages_per_sender": map[string]any{
					"type":     "array",
					"maxItems": message.TopSenders,
					"items": map[string]any{
						"type":       "object",
						"properties": map[string]any{"from": str, "count": integer},
					},
				},
				"first_message_ts": nullableStr,
				"last_message_ts":  nullableStr,
			},
		},
		"Status": map[string]any{
			"type":       "object",
			"properties": map[string]any{"status": str},
		},
		"Error": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"error": str,
				"fields": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":       "object",
						"properties": map[string]any{"field": str, "rule": str, "message": str},
					},
				},
			},
		},
	}
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonResponse(description, schema string) map[string]any {
	resp := map[string]any{"description": description}
	if schema != "" {
		resp["content"] = map[string]any{
			"application/json": map[string]any{"schema": ref(schema)},
		}
	}
	return resp
}

func queryParam(name, typ, description string) map[string]any {
	return map[string]any{
		"name":        name,
		"in":          "query",
		"required":    false,
		"description": description,
		"schema":      map[string]any{"type": typ},
	}
}
