// Package openapi builds an OpenAPI 3.0 document for the formdesk API by
// reflecting on the request and response types of registered routes.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces OpenAPI 3.0 specifications from registered routes.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	routes      []Route
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Route describes one API operation.
type Route struct {
	Method  string // HTTP method, e.g. "POST"
	Path    string // chi-style path, e.g. "/api/forms/{id}"
	Summary string
	Tag     string
	Auth    bool // requires a session
	Request any  // request body model, nil for none
	// Response is the success body model; nil documents an empty object.
	Response    any
	Status      int    // success status, default 200
	ContentType string // success content type, default application/json
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "formdesk API",
		version:     "1.0.0",
		description: "Form builder: accounts, forms, public submissions and exports",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// RegisterRoute adds an operation to the document.
func (g *Generator) RegisterRoute(r Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, r)
	g.cachedSpec = nil
}

// Generate produces the complete OpenAPI 3.0 specification.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas:         make(openapi3.Schemas),
			SecuritySchemes: make(openapi3.SecuritySchemes),
		},
	}

	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	g.addCommonSchemas(spec)

	for _, route := range g.routes {
		g.addRoute(spec, route)
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the OpenAPI specification.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Schema Generation
// =============================================================================

func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"code":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"details": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					AdditionalProperties: openapi3.AdditionalProperties{
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
					},
				}},
			},
			Required: []string{"error", "code"},
		},
	}

	spec.Components.SecuritySchemes["cookieAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{Type: "apiKey", In: "cookie", Name: "auth"},
	}
	spec.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
}

var pathParam = regexp.MustCompile(`\{([^}/]+)\}`)

func (g *Generator) addRoute(spec *openapi3.T, r Route) {
	item := spec.Paths.Value(r.Path)
	if item == nil {
		item = &openapi3.PathItem{}
		for _, m := range pathParam.FindAllStringSubmatch(r.Path, -1) {
			item.Parameters = append(item.Parameters, &openapi3.ParameterRef{
				Value: &openapi3.Parameter{
					Name:     m[1],
					In:       "path",
					Required: true,
					Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				},
			})
		}
		spec.Paths.Set(r.Path, item)
	}

	op := &openapi3.Operation{
		OperationID: operationID(r.Method, r.Path),
		Summary:     r.Summary,
		Responses:   openapi3.NewResponses(),
	}
	if r.Tag != "" {
		op.Tags = []string{r.Tag}
	}
	if r.Auth {
		op.Security = &openapi3.SecurityRequirements{
			{"cookieAuth": []string{}},
			{"bearerAuth": []string{}},
		}
	}

	if r.Request != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(g.schemaRef(spec, r.Request)),
			},
		}
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	var body *openapi3.SchemaRef
	switch {
	case r.Response != nil:
		body = g.schemaRef(spec, r.Response)
	case strings.HasPrefix(contentType, "text/"):
		body = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	default:
		body = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	desc := http.StatusText(status)
	op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithSchemaRef(body, []string{contentType}),
		},
	})

	errDesc := "Error"
	op.Responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{Ref: "#/components/schemas/Error"}),
		},
	})

	item.SetOperation(strings.ToUpper(r.Method), op)
}

// schemaRef registers the named struct type of model as a component and
// returns a reference to it. Slices reference their element type.
func (g *Generator) schemaRef(spec *openapi3.T, model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: g.schemaRef(spec, reflect.New(t.Elem()).Elem().Interface()),
		}}
	}
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return g.goTypeToSchema(t)
	}

	name := t.Name()
	if _, ok := spec.Components.Schemas[name]; !ok {
		spec.Components.Schemas[name] = g.extractSchema(t)
	}
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

// extractSchema extracts an OpenAPI schema from a Go struct. Embedded
// structs without a JSON name are flattened the way encoding/json does.
func (g *Generator) extractSchema(t reflect.Type) *openapi3.SchemaRef {
	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}
	g.collectProperties(t, schema)
	return &openapi3.SchemaRef{Value: schema}
}

func (g *Generator) collectProperties(t reflect.Type, schema *openapi3.Schema) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		parts := strings.Split(jsonTag, ",")

		if field.Anonymous && parts[0] == "" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				g.collectProperties(ft, schema)
				continue
			}
		}

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}

		if propSchema := g.goTypeToSchema(field.Type); propSchema != nil {
			schema.Properties[name] = propSchema
		}
	}
}

var (
	timeType = reflect.TypeOf(time.Time{})
	rawType  = reflect.TypeOf(json.RawMessage{})
)

// goTypeToSchema converts a Go type to an OpenAPI schema.
func (g *Generator) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	if t == rawType {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}

	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "float"}}

	case reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "double"}}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: g.goTypeToSchema(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: g.goTypeToSchema(t.Elem())},
			},
		}

	case reflect.Ptr:
		schema := g.goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		if t == timeType {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return g.extractSchema(t)

	case reflect.Interface:
		// Answer values are strings, numbers, booleans or string arrays.
		return &openapi3.SchemaRef{Value: &openapi3.Schema{}}

	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Helpers
// =============================================================================

// operationID derives a stable id such as "getApiFormsId" from a route.
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '{' || r == '}' }) {
		b.WriteString(capitalize(seg))
	}
	return b.String()
}

// capitalize returns the string with the first letter capitalized.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Paths returns the documented paths in sorted order.
func (g *Generator) Paths() []string {
	spec := g.Generate()
	paths := spec.Paths.InMatchingOrder()
	sort.Strings(paths)
	return paths
}
