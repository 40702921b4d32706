// Package openapi builds the OpenAPI 3 document from route metadata declared
// by each handler and serves it with Swagger UI.
package openapi

import (
	"html"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/curakidney/api/internal/platform/validation"
)

// Info is the document's info block.
type Info struct {
	Title       string
	Description string
	Version     string
}

// Param describes a path or query parameter.
type Param struct {
	Name        string
	In          string // path or query
	Description string
	Required    bool
	Type        string
}

// Response describes one documented response. SchemaRef names a component
// schema; Schema is an inline schema. Both are optional.
type Response struct {
	Status      int
	Description string
	SchemaRef   string
	Schema      map[string]interface{}
}

// Operation is the documentation for a single route.
type Operation struct {
	Method      string
	Path        string // echo syntax, e.g. /api/v1/patient-treatments/:id
	Summary     string
	Description string
	Tag         string
	Secured     bool
	Body        *validation.Schema
	Params      []Param
	Responses   []Response
}

// Generator collects operations and renders the OpenAPI document.
type Generator struct {
	info Info

	mu         sync.RWMutex
	operations []Operation
	schemas    map[string]map[string]interface{}
}

func NewGenerator(info Info) *Generator {
	return &Generator{
		info:    info,
		schemas: make(map[string]map[string]interface{}),
	}
}

// Add registers operations. Request body schemas are added as components.
func (g *Generator) Add(ops ...Operation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, op := range ops {
		if op.Body != nil && op.Body.Name != "" {
			g.schemas[op.Body.Name] = SchemaFor(*op.Body)
		}
		g.operations = append(g.operations, op)
	}
}

// AddSchema registers a named response component schema.
func (g *Generator) AddSchema(name string, schema map[string]interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.schemas[name] = schema
}

// GenerateSpec produces the OpenAPI 3.0 document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	paths := make(map[string]interface{})
	for _, op := range g.operations {
		p := toOpenAPIPath(op.Path)
		item, _ := paths[p].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[p] = item
		}
		item[strings.ToLower(op.Method)] = buildOperation(op)
	}

	schemas := map[string]interface{}{"Error": errorSchema()}
	for name, s := range g.schemas {
		schemas[name] = s
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       g.info.Title,
			"description": g.info.Description,
			"version":     g.info.Version,
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": schemas,
			"securitySchemes": map[string]interface{}{
				"bearer": map[string]interface{}{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
	}
}

func buildOperation(op Operation) map[string]interface{} {
	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": operationID(op),
	}
	if op.Description != "" {
		out["description"] = op.Description
	}
	if op.Tag != "" {
		out["tags"] = []string{op.Tag}
	}
	if op.Secured {
		out["security"] = []map[string][]string{{"bearer": {}}}
	}

	if params := buildParams(op); len(params) > 0 {
		out["parameters"] = params
	}

	if op.Body != nil {
		ref := map[string]interface{}{"$ref": "#/components/schemas/" + op.Body.Name}
		out["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{"schema": ref},
			},
		}
	}

	responses := make(map[string]interface{})
	for _, r := range op.Responses {
		responses[strconv.Itoa(r.Status)] = buildResponse(r)
	}
	if op.Body != nil {
		addDefault(responses, Response{Status: http.StatusBadRequest, Description: "Validation failed", SchemaRef: "Error"})
	}
	if op.Secured {
		addDefault(responses, Response{Status: http.StatusUnauthorized, Description: "Missing, invalid or expired bearer token", SchemaRef: "Error"})
	}
	out["responses"] = responses
	return out
}

func addDefault(responses map[string]interface{}, r Response) {
	key := strconv.Itoa(r.Status)
	if _, ok := responses[key]; !ok {
		responses[key] = buildResponse(r)
	}
}

func buildResponse(r Response) map[string]interface{} {
	out := map[string]interface{}{"description": r.Description}
	var schema interface{}
	switch {
	case r.SchemaRef != "":
		schema = map[string]interface{}{"$ref": "#/components/schemas/" + r.SchemaRef}
	case r.Schema != nil:
		schema = r.Schema
	}
	if schema != nil {
		out["content"] = map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		}
	}
	return out
}

// buildParams returns the declared parameters plus any path parameter in the
// route that was not declared.
func buildParams(op Operation) []map[string]interface{} {
	declared := make(map[string]bool)
	var out []map[string]interface{}
	for _, p := range op.Params {
		declared[p.In+":"+p.Name] = true
		out = append(out, paramSchema(p))
	}
	for _, seg := range strings.Split(op.Path, "/") {
		if name, ok := strings.CutPrefix(seg, ":"); ok && !declared["path:"+name] {
			out = append(out, paramSchema(Param{Name: name, In: "path", Required: true}))
		}
	}
	return out
}

func paramSchema(p Param) map[string]interface{} {
	typ := p.Type
	if typ == "" {
		typ = "string"
	}
	out := map[string]interface{}{
		"name":     p.Name,
		"in":       p.In,
		"required": p.Required || p.In == "path",
		"schema":   map[string]string{"type": typ},
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	return out
}

// SchemaFor converts a validation schema into a JSON Schema object so the
// documentation states exactly the rules that are enforced.
func SchemaFor(s validation.Schema) map[string]interface{} {
	props := make(map[string]interface{}, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := map[string]interface{}{}
		if f.Type != validation.TypeAny {
			prop["type"] = string(f.Type)
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Example != nil {
			prop["example"] = f.Example
		}
		if f.Format != validation.FormatNone {
			prop["format"] = string(f.Format)
		}
		if f.Type == validation.TypeArray {
			if f.MinLength > 0 {
				prop["minItems"] = f.MinLength
			}
			if f.MaxLength > 0 {
				prop["maxItems"] = f.MaxLength
			}
			if f.Items != validation.TypeAny {
				prop["items"] = map[string]string{"type": string(f.Items)}
			}
		} else {
			if f.MinLength > 0 {
				prop["minLength"] = f.MinLength
			}
			if f.MaxLength > 0 {
				prop["maxLength"] = f.MaxLength
			}
		}
		props[f.Field] = prop
		if f.Required {
			required = append(required, f.Field)
		}
	}

	out := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"statusCode": map[string]string{"type": "integer"},
			"error":      map[string]string{"type": "string"},
			"message":    map[string]string{"type": "string"},
			"request_id": map[string]string{"type": "string"},
			"violations": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"field":   map[string]string{"type": "string"},
						"rule":    map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
					},
				},
			},
		},
		"required": []string{"statusCode", "error", "message"},
	}
}

// toOpenAPIPath rewrites echo path params (":id") to OpenAPI form ("{id}").
func toOpenAPIPath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if name, ok := strings.CutPrefix(s, ":"); ok {
			segs[i] = "{" + name + "}"
		}
	}
	return strings.Join(segs, "/")
}

func operationID(op Operation) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(op.Method))
	for _, seg := range strings.FieldsFunc(op.Path, func(r rune) bool { return r == '/' || r == '-' || r == ':' }) {
		if seg == "api" || seg == "v1" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return b.String()
}

// Paths lists documented paths in sorted order.
func (g *Generator) Paths() []string {
	spec := g.GenerateSpec()
	paths, _ := spec["paths"].(map[string]interface{})
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{title}}</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api-docs-json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      persistAuthorization: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes serves the Swagger UI at /api-docs and the raw document at
// /api-docs-json. mw (typically basic auth) wraps both.
func (g *Generator) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	page := strings.ReplaceAll(swaggerUIHTML, "{{title}}", html.EscapeString(g.info.Title))
	e.GET("/api-docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, page)
	}, mw...)
	e.GET("/api-docs-json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	}, mw...)
}
