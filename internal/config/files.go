package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveDescriptors expands the vendor descriptor patterns against rootPath
// and returns the matching .json files, sorted and without duplicates.
// Patterns accept the filepath.Match syntax plus "**" for any number of
// directories.
func (c *Config) ResolveDescriptors(rootPath string) ([]string, error) {
	found := make(map[string]struct{})
	for _, pattern := range c.Vendor.Descriptors {
		matches, err := globFiles(anchor(rootPath, pattern))
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", pattern, err)
		}
		for _, m := range matches {
			if strings.EqualFold(filepath.Ext(m), ".json") {
				found[m] = struct{}{}
			}
		}
	}

	for _, pattern := range c.Vendor.Exclude {
		// A bad exclude pattern excludes nothing.
		matches, _ := globFiles(anchor(rootPath, pattern))
		for _, m := range matches {
			delete(found, m)
		}
	}

	files := make([]string, 0, len(found))
	for f := range found {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// OutputDir returns the output directory resolved against rootPath
func (c *Config) OutputDir(rootPath string) string {
	return anchor(rootPath, c.Output.Dir)
}

// CacheDir returns the cache directory resolved against rootPath
func (c *Config) CacheDir(rootPath string) string {
	return anchor(rootPath, c.Build.Cache.Dir)
}

func anchor(rootPath, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(rootPath, p)
}

// globFiles returns the regular files matching pattern. The directory prefix
// free of wildcards is walked once; a missing prefix yields no matches.
func globFiles(pattern string) ([]string, error) {
	base, rest := splitStatic(filepath.ToSlash(filepath.Clean(pattern)))
	if len(rest) == 0 {
		info, err := os.Stat(filepath.FromSlash(base))
		if err != nil || info.IsDir() {
			return nil, nil
		}
		return []string{filepath.FromSlash(base)}, nil
	}
	for _, seg := range rest {
		if _, err := filepath.Match(seg, ""); err != nil {
			return nil, err
		}
	}

	root := filepath.FromSlash(base)
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if matchSegments(rest, strings.Split(filepath.ToSlash(rel), "/")) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// splitStatic separates the leading slash-separated segments that contain no
// wildcard from the rest of the pattern.
func splitStatic(pattern string) (string, []string) {
	segs := strings.Split(pattern, "/")
	i := 0
	for i < len(segs) && !strings.ContainsAny(segs[i], "*?[\\") {
		i++
	}
	base := strings.Join(segs[:i], "/")
	if base == "" && strings.HasPrefix(pattern, "/") {
		base = "/"
	} else if base == "" {
		base = "."
	}
	return base, segs[i:]
}

// matchSegments reports whether path matches pattern segment by segment.
// A "**" segment consumes zero or more path segments.
func matchSegments(pattern, path []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for skip := 0; skip <= len(path); skip++ {
				if matchSegments(pattern[1:], path[skip:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		if ok, _ := filepath.Match(pattern[0], path[0]); !ok {
			return false
		}
		pattern, path = pattern[1:], path[1:]
	}
	return len(path) == 0
}
