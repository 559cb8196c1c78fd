package validator

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"pinkchat/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var embeddedSchema []byte

// OpenAPIValidator validates requests against the API document
type OpenAPIValidator struct {
	doc        *openapi3.T
	raw        []byte
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator loads the document at schemaPath, or the embedded one
// when schemaPath is empty.
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	v := &OpenAPIValidator{schemaPath: schemaPath}
	if err := v.ReloadSchema(); err != nil {
		return nil, err
	}
	return v, nil
}

func loadSchema(path string) (*openapi3.T, []byte, error) {
	loader := openapi3.NewLoader()

	var (
		doc *openapi3.T
		raw []byte
		err error
	)
	if path == "" {
		raw = embeddedSchema
		doc, err = loader.LoadFromData(raw)
	} else {
		doc, err = loader.LoadFromFile(path)
		if err == nil {
			raw, err = doc.MarshalJSON()
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OpenAPI schema %q: %w", path, err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}
	return doc, raw, nil
}

// ReloadSchema reloads the document from its source
func (v *OpenAPIValidator) ReloadSchema() error {
	doc, raw, err := loadSchema(v.schemaPath)
	if err != nil {
		return err
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.doc = doc
	v.raw = raw
	v.router = router
	return nil
}

// Schema returns the document being enforced
func (v *OpenAPIValidator) Schema() []byte {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.raw
}

// Middleware validates requests for routes the document describes. Other
// routes pass through untouched.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(errors.NewValidationError(describe(err)))
			c.Abort()
			return
		}

		c.Next()
	}
}

func describe(err error) string {
	switch e := err.(type) {
	case *openapi3filter.RequestError:
		if e.Parameter != nil {
			return fmt.Sprintf("invalid %s parameter %q", e.Parameter.In, e.Parameter.Name)
		}
		if e.RequestBody != nil {
			return "invalid request body"
		}
		return e.Error()
	default:
		return err.Error()
	}
}
