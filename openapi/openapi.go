// Package openapi builds the OpenAPI 3 document of the auth endpoints from
// Go types and serves it as JSON or YAML.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

const schemaPrefix = "#/components/schemas/"

type OpenAPI struct {
	mu      sync.RWMutex
	spec    *openapi3.T
	schemas map[reflect.Type]string
}

func New(title, version string) *OpenAPI {
	return &OpenAPI{
		spec: &openapi3.T{
			OpenAPI: "3.0.3",
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
			Paths: openapi3.NewPaths(),
			Components: &openapi3.Components{
				Schemas:         make(openapi3.Schemas),
				SecuritySchemes: make(openapi3.SecuritySchemes),
			},
		},
		schemas: make(map[reflect.Type]string),
	}
}

func (o *OpenAPI) Description(desc string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Info.Description = desc
	return o
}

func (o *OpenAPI) Server(url, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Servers = append(o.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return o
}

func (o *OpenAPI) Tag(name, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Tags = append(o.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return o
}

func (o *OpenAPI) BearerAuth(name, description string) *OpenAPI {
	return o.securityScheme(name, &openapi3.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
		Description:  description,
	})
}

func (o *OpenAPI) CookieAuth(name, cookieName, description string) *OpenAPI {
	return o.securityScheme(name, &openapi3.SecurityScheme{
		Type:        "apiKey",
		Name:        cookieName,
		In:          "cookie",
		Description: description,
	})
}

func (o *OpenAPI) securityScheme(name string, scheme *openapi3.SecurityScheme) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{Value: scheme}
	return o
}

func (o *OpenAPI) Spec() *openapi3.T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.spec
}

func (o *OpenAPI) JSON() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return json.MarshalIndent(o.spec, "", "  ")
}

func (o *OpenAPI) YAML() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	intermediate, err := o.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (o *OpenAPI) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.JSON()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render openapi document")
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (o *OpenAPI) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render openapi document")
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

func (o *OpenAPI) Document(method, path string) *RouteBuilder {
	return &RouteBuilder{
		openapi:   o,
		method:    strings.ToUpper(method),
		path:      path,
		operation: &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
}

func (o *OpenAPI) addOperation(method, path string, op *openapi3.Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()

	item := o.spec.Paths.Find(path)
	if item == nil {
		item = &openapi3.PathItem{}
		o.spec.Paths.Set(path, item)
	}
	item.SetOperation(method, op)
}

// schemaFor returns a reference to the component schema of example's type,
// registering it on first use. Non struct values are inlined.
func (o *OpenAPI) schemaFor(example any) *openapi3.SchemaRef {
	o.mu.Lock()
	defer o.mu.Unlock()

	if example == nil {
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
	return o.typeSchema(reflect.TypeOf(example))
}

func (o *OpenAPI) typeSchema(t reflect.Type) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		inner := o.typeSchema(t.Elem())
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{inner}, Nullable: true}}
		}
		inner.Value.Nullable = true
		return inner
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0).NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Slice, reflect.Array:
		array := openapi3.NewArraySchema()
		array.Items = o.typeSchema(t.Elem())
		return array.NewRef()
	case reflect.Struct:
		return o.structSchema(t)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

func (o *OpenAPI) structSchema(t reflect.Type) *openapi3.SchemaRef {
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return openapi3.NewDateTimeSchema().NewRef()
	}

	if name, ok := o.schemas[t]; ok {
		return openapi3.NewSchemaRef(schemaPrefix+name, nil)
	}

	name := t.Name()
	if name == "" {
		return o.buildStruct(t).NewRef()
	}

	o.schemas[t] = name
	o.spec.Components.Schemas[name] = o.buildStruct(t).NewRef()

	return openapi3.NewSchemaRef(schemaPrefix+name, nil)
}

func (o *OpenAPI) buildStruct(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}

		prop := o.typeSchema(field.Type)
		if doc := field.Tag.Get("doc"); doc != "" && prop.Value != nil {
			prop.Value.Description = doc
		}

		schema.Properties[name] = prop
		if !strings.Contains(opts, "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}
