package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest declares the document collections to index.
type Manifest struct {
	Collections []CollectionSpec `yaml:"collections"`
}

// CollectionSpec names a collection and the files or directories that
// feed it. Relative paths resolve against the manifest's directory.
type CollectionSpec struct {
	Name  string   `yaml:"name"`
	Paths []string `yaml:"paths"`
}

// LoadManifest reads and validates a collections manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	seen := map[string]bool{}
	for i, c := range m.Collections {
		if c.Name == "" {
			return nil, fmt.Errorf("manifest collection %d: name is required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("manifest collection %q declared twice", c.Name)
		}
		seen[c.Name] = true
		if len(c.Paths) == 0 {
			return nil, fmt.Errorf("manifest collection %q: at least one path is required", c.Name)
		}
	}
	return &m, nil
}

// sourceFiles expands a collection spec into the concrete files to
// index. Directories are walked for markdown and text files.
func sourceFiles(baseDir string, spec CollectionSpec) ([]string, error) {
	var files []string
	for _, p := range spec.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", spec.Name, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		root := p
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// Skip hidden directories, but not an explicitly listed root.
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			switch filepath.Ext(path) {
			case ".md", ".markdown", ".txt":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("collection %s: walk %s: %w", spec.Name, p, err)
		}
	}
	return files, nil
}
