// Package steps defines the stages of a pipeline cycle and the order they run in.
package steps

import (
	"fmt"
	"sort"
)

// Stage names
const (
	FetchFeeds = "fetch_feeds"
	Scrape     = "scrape"
	Extract    = "extract"
	Digest     = "digest"
	Publish    = "publish"
)

// Stage categories
const (
	CategoryIngestion    = "ingestion"
	CategoryEnrichment   = "enrichment"
	CategoryNotification = "notification"
	CategoryPublication  = "publication"
)

// StageDefinition defines metadata for a pipeline stage
type StageDefinition struct {
	Name         string
	Category     string
	Order        int
	Dependencies []string
	// Default stages run when no explicit selection is made.
	Default bool
}

// StageRegistry holds all stage definitions
var StageRegistry = map[string]StageDefinition{
	FetchFeeds: {
		Name:         FetchFeeds,
		Category:     CategoryIngestion,
		Order:        1,
		Dependencies: []string{},
		Default:      true,
	},
	Scrape: {
		Name:         Scrape,
		Category:     CategoryEnrichment,
		Order:        2,
		Dependencies: []string{},
		Default:      true,
	},
	Extract: {
		Name:         Extract,
		Category:     CategoryEnrichment,
		Order:        3,
		Dependencies: []string{Scrape},
		Default:      true,
	},
	Digest: {
		Name:         Digest,
		Category:     CategoryNotification,
		Order:        4,
		Dependencies: []string{Extract},
		Default:      true,
	},
	Publish: {
		Name:         Publish,
		Category:     CategoryPublication,
		Order:        5,
		Dependencies: []string{},
	},
}

// UnknownStageError is returned for a stage name not in the registry.
type UnknownStageError struct {
	Stage string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage: %s", e.Stage)
}

// DependencyError reports a stage skipped because a dependency failed in the same cycle.
type DependencyError struct {
	Stage              string
	FailedDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s skipped, failed dependencies: %v", e.Stage, e.FailedDependencies)
}

// Resolve validates a stage selection and returns it in execution order.
// An empty selection yields the default cycle.
func Resolve(requested []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	if len(requested) == 0 {
		for name, def := range StageRegistry {
			if def.Default {
				out = append(out, name)
			}
		}
	} else {
		for _, name := range requested {
			if _, ok := StageRegistry[name]; !ok {
				return nil, &UnknownStageError{Stage: name}
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return StageRegistry[out[i]].Order < StageRegistry[out[j]].Order
	})
	return out, nil
}

// ValidateDependencies checks that none of a stage's dependencies failed in
// this cycle. Dependencies that did not run are satisfied by earlier cycles.
func ValidateDependencies(stage string, failed map[string]bool) error {
	def, ok := StageRegistry[stage]
	if !ok {
		return &UnknownStageError{Stage: stage}
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if failed[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &DependencyError{Stage: stage, FailedDependencies: missing}
	}
	return nil
}
