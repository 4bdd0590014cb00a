// Package schemas validates JSON documents against the embedded JSON Schemas for request
// bodies and stream events.
package schemas

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Embedded schema names.
const (
	SearchQuery = "search_query.schema.json"
	Draft       = "draft.schema.json"
	Event       = "event.schema.json"
)

// rootField names the document itself in field errors.
const rootField = "(root)"

//go:embed json/*.schema.json
var schemaFiles embed.FS

// ErrUnknownSchema is returned for a name with no embedded schema.
var ErrUnknownSchema = errors.New("unknown schema")

type compiled struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

var registry sync.Map // name -> *compiled

// ValidationError lists every rule the document broke.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is one broken rule. Field is a dotted path such as "company_sizes.0".
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed: ")
	for i, fe := range ve.Errors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fe.Field)
		sb.WriteString(": ")
		sb.WriteString(fe.Message)
	}
	return sb.String()
}

// Validate checks document against the embedded schema called name. A document that is
// not valid JSON is reported as a ValidationError on the root.
func Validate(name string, document []byte) error {
	schema, err := load(name)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: rootField, Message: "invalid JSON: " + err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = rootField
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}

// load compiles each embedded schema once and caches the outcome, including failure.
func load(name string) (*gojsonschema.Schema, error) {
	entry, _ := registry.LoadOrStore(name, &compiled{})
	c := entry.(*compiled)
	c.once.Do(func() {
		data, err := schemaFiles.ReadFile("json/" + name)
		if errors.Is(err, fs.ErrNotExist) {
			c.err = fmt.Errorf("%w: %s", ErrUnknownSchema, name)
			return
		}
		if err != nil {
			c.err = fmt.Errorf("failed to read schema %s: %w", name, err)
			return
		}
		if c.schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data)); err != nil {
			c.err = fmt.Errorf("invalid schema %s: %w", name, err)
		}
	})
	return c.schema, c.err
}
