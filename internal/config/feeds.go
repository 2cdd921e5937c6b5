package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feed is one RSS or Atom source.
type Feed struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled treats an omitted flag as enabled.
func (f Feed) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// FeedsFile is the on-disk feeds configuration.
type FeedsFile struct {
	Feeds []Feed `yaml:"rss_feeds"`
}

// LoadFeeds reads the feeds file and returns the enabled feeds.
func LoadFeeds(path string) ([]Feed, error) {
	if path == "" {
		return nil, fmt.Errorf("feeds path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file %s: %w", path, err)
	}

	var file FeedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file: %w", err)
	}

	var enabled []Feed
	for i, f := range file.Feeds {
		f.Name = strings.TrimSpace(f.Name)
		f.URL = strings.TrimSpace(f.URL)
		if f.URL == "" {
			return nil, fmt.Errorf("feeds file: entry %d has no url", i)
		}
		if f.Name == "" {
			f.Name = f.URL
		}
		if f.IsEnabled() {
			enabled = append(enabled, f)
		}
	}
	return enabled, nil
}
