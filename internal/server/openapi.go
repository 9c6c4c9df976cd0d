/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"encoding/json"
	"net/http"
	"sync"
)

// openapiDoc is assembled on first request and cached for the process
// lifetime. It is hand-written, not generated from handler metadata.
var (
	openapiOnce sync.Once
	openapiJSON []byte
)

func (inst *Instance) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	openapiOnce.Do(func() {
		openapiJSON, _ = json.Marshal(buildOpenAPIDocument())
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiJSON)
}

func buildOpenAPIDocument() map[string]any {
	envelope := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"success": map[string]any{"type": "boolean"},
			"data":    map[string]any{},
			"errors": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"code":    map[string]any{"type": "string"},
						"message": map[string]any{"type": "string"},
						"details": map[string]any{},
					},
					"required": []string{"code", "message"},
				},
			},
		},
		"required": []string{"success"},
	}

	jsonResponse := func(description string) map[string]any {
		return map[string]any{
			"description": description,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/ApiResponse"},
				},
			},
		}
	}

	op := func(summary string, responses map[string]any) map[string]any {
		return map[string]any{"summary": summary, "responses": responses}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "charted-server",
			"version": Version,
			"license": map[string]any{
				"name": "Apache-2.0",
				"url":  "https://www.apache.org/licenses/LICENSE-2.0",
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{"ApiResponse": envelope},
			"securitySchemes": map[string]any{
				"bearer": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
				"basic":  map[string]any{"type": "http", "scheme": "basic"},
				"apikey": map[string]any{"type": "apiKey", "in": "header", "name": "Authorization"},
			},
		},
		"paths": map[string]any{
			"/": map[string]any{
				"get": op("Entrypoint", map[string]any{"200": jsonResponse("hello")}),
			},
			"/v1/info": map[string]any{
				"get": op("Build metadata", map[string]any{"200": jsonResponse("build info")}),
			},
			"/v1/heartbeat": map[string]any{
				"get": op("Liveness probe", map[string]any{
					"200": map[string]any{
						"description": "Ok.",
						"content": map[string]any{
							"text/plain": map[string]any{"schema": map[string]any{"type": "string"}},
						},
					},
				}),
			},
			"/v1/features": map[string]any{
				"get": op("Feature flags", map[string]any{"200": jsonResponse("flags")}),
			},
			"/v1/indexes/{idOrName}": map[string]any{
				"get": op("Owner chart index", map[string]any{
					"200": map[string]any{
						"description": "Helm chart index",
						"content": map[string]any{
							"application/yaml": map[string]any{"schema": map[string]any{"type": "string"}},
						},
					},
					"404": jsonResponse("owner not found"),
				}),
			},
			"/v1/users": map[string]any{
				"post": op("Register a user", map[string]any{
					"201": jsonResponse("created"),
					"403": jsonResponse("registrations disabled"),
					"409": jsonResponse("already exists"),
				}),
			},
			"/v1/users/login": map[string]any{
				"post": op("Issue a session", map[string]any{
					"201": jsonResponse("session with both tokens"),
					"401": jsonResponse("invalid credentials"),
				}),
			},
			"/v1/users/{idOrName}": map[string]any{
				"get":    op("Fetch a user", map[string]any{"200": jsonResponse("user"), "404": jsonResponse("not found")}),
				"patch":  op("Patch a user", map[string]any{"204": jsonResponse("patched")}),
				"delete": op("Delete a user", map[string]any{"204": jsonResponse("deleted")}),
			},
			"/v1/repositories/{idOrName}/releases/{version}/tarball": map[string]any{
				"put": op("Upload a chart tarball", map[string]any{
					"201": jsonResponse("release created"),
					"400": jsonResponse("invalid tarball"),
				}),
				"get": op("Download a chart tarball", map[string]any{
					"200": map[string]any{
						"description": "tarball bytes",
						"content": map[string]any{
							"application/gzip": map[string]any{
								"schema": map[string]any{"type": "string", "format": "binary"},
							},
						},
					},
					"404": jsonResponse("no such release"),
				}),
			},
		},
	}
}
