package api

import (
	"net/http"
	"strconv"
	"strings"
)

type route struct {
	method      string
	path        string
	operationID string
	summary     string
	tag         string
	public      bool
	responses   map[int]string
}

// routes lists the documented HTTP surface. Ingestion accepts every method
// in webhook.Methods and is expanded per method.
var routes = []route{
	{method: http.MethodGet, path: "/healthz", operationID: "healthz", summary: "Liveness and database reachability", tag: "ops", public: true,
		responses: map[int]string{200: "Healthy", 503: "Database unavailable"}},
	{method: http.MethodPost, path: "/endpoints", operationID: "createEndpoint", summary: "Register a named endpoint", tag: "endpoints",
		responses: map[int]string{201: "Endpoint created", 400: "Missing, invalid or duplicate name", 401: "Unauthorized"}},
	{method: http.MethodGet, path: "/endpoints", operationID: "listEndpoints", summary: "List active endpoints (all=true includes inactive)", tag: "endpoints",
		responses: map[int]string{200: "Endpoints", 401: "Unauthorized"}},
	{method: http.MethodGet, path: "/endpoints/{id}", operationID: "getEndpoint", summary: "Endpoint detail with token and log count", tag: "endpoints",
		responses: map[int]string{200: "Endpoint", 401: "Unauthorized", 404: "Endpoint not found"}},
	{method: http.MethodGet, path: "/endpoints/{id}/logs", operationID: "listEndpointLogs", summary: "Recent received calls, newest first", tag: "endpoints",
		responses: map[int]string{200: "Log entries", 400: "Invalid limit", 401: "Unauthorized", 404: "Endpoint not found"}},
	{method: http.MethodPost, path: "/endpoints/{id}/toggle", operationID: "toggleEndpoint", summary: "Flip the active flag", tag: "endpoints",
		responses: map[int]string{200: "Endpoint", 401: "Unauthorized", 404: "Endpoint not found"}},
	{method: http.MethodPost, path: "/endpoints/{id}/delete", operationID: "deleteEndpoint", summary: "Delete an endpoint and its logs", tag: "endpoints",
		responses: map[int]string{200: "Deleted", 401: "Unauthorized", 404: "Endpoint not found"}},
}

var ingestMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the hookbox HTTP API.
func buildOpenAPIDoc() map[string]any {
	paths := map[string]map[string]any{}
	add := func(rt route) {
		item, ok := paths[rt.path]
		if !ok {
			item = map[string]any{}
			paths[rt.path] = item
		}
		responses := map[string]any{}
		for code, desc := range rt.responses {
			responses[strconv.Itoa(code)] = map[string]any{"description": desc}
		}
		op := map[string]any{
			"operationId": rt.operationID,
			"summary":     rt.summary,
			"tags":        []string{rt.tag},
			"responses":   responses,
		}
		if strings.Contains(rt.path, "{") {
			op["parameters"] = pathParameters(rt.path)
		}
		if !rt.public {
			op["security"] = []any{map[string]any{"BearerAuth": []string{}}}
		}
		item[strings.ToLower(rt.method)] = op
	}

	for _, rt := range routes {
		add(rt)
	}
	for _, m := range ingestMethods {
		add(route{
			method:      m,
			path:        "/webhook/{name}",
			operationID: "ingest" + strings.ToUpper(m[:1]) + strings.ToLower(m[1:]),
			summary:     "Record a call to an endpoint",
			tag:         "ingestion",
			public:      true,
			responses: map[int]string{
				200: "Stored", 401: "Invalid or missing token", 404: "Endpoint not found",
				429: "Rate limit exceeded", 500: "Internal error",
			},
		})
	}

	out := make(map[string]any, len(paths))
	for p, item := range paths {
		out[p] = item
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "hookbox",
			"version": "1.0",
		},
		"paths": out,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":        "http",
					"scheme":      "bearer",
					"description": "Account API key (hbk_...) for management routes, endpoint token for ingestion",
				},
			},
		},
	}
}

func pathParameters(path string) []any {
	var params []any
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, map[string]any{
				"name":     strings.Trim(seg, "{}"),
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string"},
			})
		}
	}
	return params
}
