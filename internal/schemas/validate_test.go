package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedSchemas(t *testing.T) {
	s, err := Load(DealExtractionSchema)
	require.NoError(t, err)

	again, err := Load(DealExtractionSchema)
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("nope.schema.json")
	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, err.Error(), "schema not found")
}

func TestValidateExtraction(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "full record with array sets",
			doc: `{"company": "Acme", "transaction_type": "Acquisition",
			       "capital_sources": ["Private Equity"], "sectors": ["Space", "Software"],
			       "deal_amount": "$40M", "investors": "Founders Fund", "location": null}`,
		},
		{
			name: "sets as delimited strings",
			doc:  `{"company": "Acme", "transaction_type": null, "capital_sources": "Debt; Government", "sectors": null}`,
		},
		{
			name:    "missing company",
			doc:     `{"transaction_type": "IPO"}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			doc:     `{"company": 12, "transaction_type": "IPO"}`,
			wantErr: true,
		},
		{
			name:    "labels must be strings",
			doc:     `{"company": "Acme", "transaction_type": "IPO", "sectors": [1, 2]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtraction(tt.doc)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateExtraction_MalformedDocument(t *testing.T) {
	err := ValidateExtraction(`{"company": `)
	require.Error(t, err)
	var validationErr *ValidationError
	assert.False(t, errors.As(err, &validationErr))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "x"}`))

	err := ValidateJSONString(schema, `{}`)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
	assert.Contains(t, err.Error(), "validation failed")

	err = ValidateJSONString(`{"type": 12}`, `{}`)
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}
