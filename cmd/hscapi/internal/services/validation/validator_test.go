package validation

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)
	return v
}

func TestNames(t *testing.T) {
	assert.Equal(t,
		[]string{SchemaLogin, SchemaPatientCreate, SchemaUserCreate, SchemaUserRole},
		newValidator(t).Names())
}

func TestValidate(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name     string
		schema   string
		body     string
		wantPath string
		wantMsg  string
	}{
		{name: "valid login", schema: SchemaLogin, body: `{"username":"dr.kone","password":"secret"}`},
		{name: "valid patient", schema: SchemaPatientCreate, body: `{"code_patient":"P-001","nom":"KONE","sexe":"F"}`},
		{name: "missing field", schema: SchemaLogin, body: `{"username":"dr.kone"}`, wantPath: "$", wantMsg: "password"},
		{name: "short password", schema: SchemaUserCreate, body: `{"username":"x","password":"short","role":"PATIENT"}`, wantPath: "$.password"},
		{name: "bad username", schema: SchemaUserCreate, body: `{"username":"a b","password":"long-enough","role":"PATIENT"}`, wantPath: "$.username"},
		{name: "unknown field", schema: SchemaUserRole, body: `{"role":"ADMIN","is_superuser":true}`, wantPath: "$", wantMsg: "is_superuser"},
		{name: "wrong type", schema: SchemaPatientCreate, body: `{"code_patient":1,"nom":"KONE"}`, wantPath: "$.code_patient"},
		{name: "enum", schema: SchemaPatientCreate, body: `{"code_patient":"P","nom":"KONE","sexe":"X"}`, wantPath: "$.sexe"},
		{name: "malformed", schema: SchemaLogin, body: `{"username":`, wantPath: "$", wantMsg: "malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.schema, []byte(tt.body))
			if tt.wantPath == "" {
				require.NoError(t, err)
				return
			}
			var ve *Error
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantPath, ve.Path)
			assert.Contains(t, ve.Message, tt.wantMsg)
			assert.Contains(t, ve.Error(), "validation failed at '"+tt.wantPath+"'")
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := newValidator(t).Validate("nope", []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownSchema)
}

func TestValidate_CachesCompiledSchema(t *testing.T) {
	v := newValidator(t)
	require.NoError(t, v.Validate(SchemaUserRole, []byte(`{"role":"ADMIN"}`)))
	require.NoError(t, v.Validate(SchemaUserRole, []byte(`{"role":"MEDECIN"}`)))
	assert.Equal(t, 1, v.cache.Len())
}

func TestValidate_BadSchemaFile(t *testing.T) {
	v, err := newSchemaValidator(fstest.MapFS{
		"broken.json": {Data: []byte(`{"type": 12}`)},
	}, 2)
	require.NoError(t, err)

	err = v.Validate("broken", []byte(`{}`))
	require.Error(t, err)
	var ve *Error
	assert.False(t, errors.As(err, &ve), "a broken schema is a server error, not a bad body")
}
