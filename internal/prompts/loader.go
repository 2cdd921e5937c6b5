// Package prompts holds the LLM prompt templates, embedded as JSON files of
// key to template text.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

// ExtractionFile holds the deal extraction prompts.
const ExtractionFile = "extraction.json"

// Keys in ExtractionFile.
const (
	KeySystem      = "system"
	KeyExtractDeal = "extract-deal"
)

var placeholder = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Set is one parsed prompt file.
type Set struct {
	name    string
	prompts map[string]string
}

var loaded sync.Map // file name -> *Set

// Load parses an embedded prompt file. Parsed files are cached for the life
// of the process.
func Load(name string) (*Set, error) {
	if s, ok := loaded.Load(name); ok {
		return s.(*Set), nil
	}

	raw, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
	}
	set := &Set{name: name}
	if err := json.Unmarshal(raw, &set.prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
	}

	s, _ := loaded.LoadOrStore(name, set)
	return s.(*Set), nil
}

// Extraction returns the deal extraction prompts.
func Extraction() (*Set, error) {
	return Load(ExtractionFile)
}

// Get returns the raw template for key.
func (s *Set) Get(key string) (string, error) {
	p, ok := s.prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, s.name)
	}
	return p, nil
}

// Render fills every {{.Name}} placeholder of the template for key. A
// placeholder without a value is an error; extra values are ignored.
func (s *Set) Render(key string, vars map[string]string) (string, error) {
	tmpl, err := s.Get(key)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := vars[m[1]]; !ok {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s/%s: no value for %s", s.name, key, strings.Join(dedupe(missing), ", "))
	}
	return substitute(tmpl, vars), nil
}

// Keys lists the prompt keys in the file, sorted.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.prompts))
	for k := range s.prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// substitute replaces placeholders in one pass, so values containing
// placeholder syntax are left as written.
func substitute(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := vars[m[3:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
