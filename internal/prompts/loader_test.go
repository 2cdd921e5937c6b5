package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractionSet(t *testing.T) *Set {
	t.Helper()
	set, err := Extraction()
	require.NoError(t, err)
	return set
}

func TestExtraction_Keys(t *testing.T) {
	set := extractionSet(t)
	assert.Equal(t, []string{KeyExtractDeal, KeySystem}, set.Keys())

	again, err := Load(ExtractionFile)
	require.NoError(t, err)
	assert.Same(t, set, again)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("nonexistent.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet(t *testing.T) {
	set := extractionSet(t)

	prompt, err := set.Get(KeyExtractDeal)
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.Text}}")
	assert.Contains(t, prompt, "transaction_type")

	_, err = set.Get("nonexistent-key")
	assert.ErrorContains(t, err, "not found in extraction.json")
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		expected string
	}{
		{
			name:     "single placeholder",
			template: "Title: {{.Title}}",
			vars:     map[string]string{"Title": "Acme raises $10M"},
			expected: "Title: Acme raises $10M",
		},
		{
			name:     "repeated and unknown placeholders",
			template: "{{.A}} {{.A}} {{.B}}",
			vars:     map[string]string{"A": "x"},
			expected: "x x {{.B}}",
		},
		{
			name:     "values are not re-expanded",
			template: "{{.Text}} / {{.URL}}",
			vars:     map[string]string{"Text": "see {{.URL}}", "URL": "https://x.test"},
			expected: "see {{.URL}} / https://x.test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, substitute(tt.template, tt.vars))
		})
	}
}

func TestRender(t *testing.T) {
	set := extractionSet(t)

	out, err := set.Render(KeyExtractDeal, map[string]string{
		"Title":            "Acme acquires Beta",
		"URL":              "https://news.test/a",
		"Text":             "body",
		"TransactionTypes": "Acquisition",
		"CapitalSources":   "Debt",
		"Sectors":          "Space",
		"Unused":           "ignored",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Article Title: Acme acquires Beta")
	assert.NotContains(t, out, "{{.")
}

func TestRender_MissingValue(t *testing.T) {
	set := extractionSet(t)

	_, err := set.Render(KeyExtractDeal, map[string]string{"Title": "t", "URL": "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value for")
	assert.Contains(t, err.Error(), "Text")
	assert.NotContains(t, err.Error(), "Title")
}
