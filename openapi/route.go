package openapi

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	openapi   *OpenAPI
	method    string
	path      string
	operation *openapi3.Operation
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) OperationID(id string) *RouteBuilder {
	rb.operation.OperationID = id
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

func (rb *RouteBuilder) HeaderParam(name, description string, required bool) *RouteBuilder {
	return rb.param(name, "header", description, required)
}

func (rb *RouteBuilder) CookieParam(name, description string, required bool) *RouteBuilder {
	return rb.param(name, "cookie", description, required)
}

func (rb *RouteBuilder) param(name, in, description string, required bool) *RouteBuilder {
	rb.operation.Parameters = append(rb.operation.Parameters, &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          in,
			Description: description,
			Required:    required,
			Schema:      openapi3.NewStringSchema().NewRef(),
		},
	})
	return rb
}

func (rb *RouteBuilder) Body(example any, description string) *RouteBuilder {
	rb.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(rb.openapi.schemaFor(example)),
	}
	return rb
}

func (rb *RouteBuilder) Response(statusCode int, example any, description string) *RouteBuilder {
	response := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		response.WithJSONSchemaRef(rb.openapi.schemaFor(example))
	}

	rb.operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{Value: response})
	return rb
}

// ResponseHeaders documents headers on an already declared response.
func (rb *RouteBuilder) ResponseHeaders(statusCode int, headers map[string]string) *RouteBuilder {
	resp := rb.operation.Responses.Value(strconv.Itoa(statusCode))
	if resp == nil || resp.Value == nil {
		return rb
	}

	if resp.Value.Headers == nil {
		resp.Value.Headers = make(openapi3.Headers)
	}
	for name, desc := range headers {
		resp.Value.Headers[name] = &openapi3.HeaderRef{
			Value: &openapi3.Header{
				Parameter: openapi3.Parameter{
					Description: desc,
					Schema:      openapi3.NewStringSchema().NewRef(),
				},
			},
		}
	}

	return rb
}

func (rb *RouteBuilder) Security(schemes ...string) *RouteBuilder {
	if rb.operation.Security == nil {
		rb.operation.Security = openapi3.NewSecurityRequirements()
	}
	for _, scheme := range schemes {
		rb.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	return rb
}

func (rb *RouteBuilder) NoSecurity() *RouteBuilder {
	rb.operation.Security = openapi3.NewSecurityRequirements()
	return rb
}

func (rb *RouteBuilder) Build() {
	rb.openapi.addOperation(rb.method, rb.path, rb.operation)
}
