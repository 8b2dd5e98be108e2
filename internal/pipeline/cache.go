package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/hdlgen/internal/facts"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	ContentHash string `json:"content_hash"`
	Design      string `json:"design"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// outputCache remembers the content hash of every file a build wrote so an
// unchanged output is not rewritten.
type outputCache struct {
	dir   string
	mu    sync.Mutex
	index cacheIndex
}

func newOutputCache(dir string) *outputCache {
	return &outputCache{
		dir: dir,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *outputCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *outputCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *outputCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

// Fresh reports whether path already holds content with the given hash.
func (c *outputCache) Fresh(path, contentHash string) bool {
	c.mu.Lock()
	entry, ok := c.index.Entries[path]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash {
		return false
	}
	onDisk, err := hashFile(path)
	return err == nil && onDisk == contentHash
}

func (c *outputCache) Put(path, design, contentHash string) {
	c.mu.Lock()
	c.index.Entries[path] = cacheEntry{ContentHash: contentHash, Design: design}
	c.mu.Unlock()
}

const factTablesCacheVersion = 1

type factTablesCache struct {
	Version int          `json:"version"`
	Tables  facts.Tables `json:"tables"`
}

// LoadPreviousTables returns the fact tables saved by the last build in dir.
func LoadPreviousTables(dir string) (facts.Tables, bool, error) {
	path := filepath.Join(dir, "fact_tables.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return facts.Tables{}, false, nil
		}
		return facts.Tables{}, false, fmt.Errorf("read fact tables cache: %w", err)
	}
	var cache factTablesCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return facts.Tables{}, false, fmt.Errorf("parse fact tables cache: %w", err)
	}
	if cache.Version != factTablesCacheVersion {
		return facts.Tables{}, false, nil
	}
	return cache.Tables, true, nil
}

func saveFactTablesCache(dir string, tables facts.Tables) error {
	cache := factTablesCache{
		Version: factTablesCacheVersion,
		Tables:  tables,
	}
	if err := writeJSONAtomic(filepath.Join(dir, "fact_tables.json"), cache); err != nil {
		return fmt.Errorf("write fact tables cache: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data next to path and renames it into place so a
// reader never sees a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
