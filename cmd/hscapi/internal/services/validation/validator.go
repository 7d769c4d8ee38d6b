// Package validation checks JSON request bodies against embedded schemas.
package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Schema names.
const (
	SchemaLogin         = "login"
	SchemaUserCreate    = "user_create"
	SchemaUserRole      = "user_role"
	SchemaPatientCreate = "patient_create"
)

const maxMessageLength = 200

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrUnknownSchema is returned for a schema name with no embedded file.
var ErrUnknownSchema = errors.New("unknown schema")

// Error is a body that does not match its schema.
type Error struct {
	// Path is a JSONPath-like location, "$" for the whole document.
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed at '%s': %s", e.Path, e.Message)
}

// SchemaValidator compiles schemas on first use and keeps them in an LRU.
type SchemaValidator struct {
	files   fs.FS
	cache   *lru.Cache[string, *jsonschema.Schema]
	printer *message.Printer
}

// NewSchemaValidator returns a validator over the embedded schemas.
func NewSchemaValidator(cacheSize int) (*SchemaValidator, error) {
	sub, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	return newSchemaValidator(sub, cacheSize)
}

func newSchemaValidator(files fs.FS, cacheSize int) (*SchemaValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &SchemaValidator{
		files:   files,
		cache:   cache,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Names lists the available schemas.
func (v *SchemaValidator) Names() []string {
	matches, _ := fs.Glob(v.files, "*.json")
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), ".json"))
	}
	slices.Sort(names)
	return names
}

// Validate checks body against the named schema. A body that is not JSON
// or violates the schema yields an *Error.
func (v *SchemaValidator) Validate(name string, body []byte) error {
	schema, err := v.schema(name)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &Error{Path: "$", Message: "malformed JSON"}
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return v.describe(ve)
		}
		return err
	}
	return nil
}

func (v *SchemaValidator) schema(name string) (*jsonschema.Schema, error) {
	if s, ok := v.cache.Get(name); ok {
		return s, nil
	}

	file := name + ".json"
	raw, err := fs.ReadFile(v.files, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
		}
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(file, parsed); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := compiler.Compile(file)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	v.cache.Add(name, s)
	return s, nil
}

// describe reports the first leaf failure, which names the offending
// field rather than the enclosing object.
func (v *SchemaValidator) describe(ve *jsonschema.ValidationError) *Error {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	p := "$"
	if parts := slices.DeleteFunc(slices.Clone(leaf.InstanceLocation), func(s string) bool { return s == "" }); len(parts) > 0 {
		p = "$." + strings.Join(parts, ".")
	}

	msg := leaf.ErrorKind.LocalizedString(v.printer)
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength] + "... (truncated)"
	}
	return &Error{Path: p, Message: msg}
}
