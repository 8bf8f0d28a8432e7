package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSchemaFiles_Compile(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			data, err := files.ReadFile(name + ".schema.json")
			require.NoError(t, err)

			var v any
			require.NoError(t, json.Unmarshal(data, &v), "schema file should be valid JSON")

			_, err = load(name)
			assert.NoError(t, err)
		})
	}
}

func TestValidate_Status(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: `{"optimization_id":"abc","status":"processing","progress":40,"message":"Rewriting"}`},
		{name: "null optionals", doc: `{"optimization_id":"abc","status":"failed","progress":100,"error":null}`},
		{name: "unknown state", doc: `{"optimization_id":"abc","status":"exploded","progress":0}`, wantErr: true},
		{name: "progress out of range", doc: `{"optimization_id":"abc","status":"processing","progress":140}`, wantErr: true},
		{name: "missing id", doc: `{"status":"pending","progress":0}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Status, []byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, Status, ve.Schema)
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(Result, []byte(`{not json`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "(root)", ve.Errors[0].Field)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", []byte(`{}`))
	var le *SchemaLoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "nope")
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Schema: "status", Errors: []FieldError{{Field: "progress", Message: "too big"}}}
	assert.Equal(t, "status payload failed validation: 1. progress: too big", err.Error())
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["id"]}`
	assert.NoError(t, ValidateJSONString(schema, `{"id":1}`))
	assert.Error(t, ValidateJSONString(schema, `{}`))
}
