package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/hdlgen/internal/facts"
	"github.com/robert-at-pretension-io/hdlgen/internal/policy"
)

const policyCacheVersion = 1

// policyCacheEntry holds the raw rule result, before config overrides, for one
// snapshot of fact tables and one set of rule files.
type policyCacheEntry struct {
	Version    int           `json:"version"`
	RulesHash  string        `json:"rules_hash"`
	TablesHash string        `json:"tables_hash"`
	Result     policy.Result `json:"result"`
}

func policyCachePath(dir string) string {
	return filepath.Join(dir, "policy_cache.json")
}

func loadPolicyCache(dir string) (*policyCacheEntry, error) {
	data, err := os.ReadFile(policyCachePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry policyCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse policy cache: %w", err)
	}
	return &entry, nil
}

func savePolicyCache(dir string, entry policyCacheEntry) error {
	entry.Version = policyCacheVersion
	if err := writeJSONAtomic(policyCachePath(dir), entry); err != nil {
		return fmt.Errorf("write policy cache: %w", err)
	}
	return nil
}

func policyCacheValid(entry *policyCacheEntry, rulesHash, tablesHash string) bool {
	if entry == nil || entry.Version != policyCacheVersion {
		return false
	}
	return entry.RulesHash == rulesHash && entry.TablesHash == tablesHash
}

func tablesHash(tables facts.Tables) (string, error) {
	data, err := json.Marshal(tables)
	if err != nil {
		return "", fmt.Errorf("marshal tables hash: %w", err)
	}
	return hashBytes(data), nil
}

// evaluatePolicies returns the rule result for tables, reusing the cached one
// in cacheDir when neither the tables nor the rules changed. An empty
// cacheDir disables the cache.
func evaluatePolicies(engine *policy.Engine, tables facts.Tables, cacheDir string) (*policy.Result, bool, error) {
	if cacheDir == "" {
		result, err := engine.Evaluate(tables)
		return result, false, err
	}

	hash, err := tablesHash(tables)
	if err != nil {
		return nil, false, err
	}
	entry, err := loadPolicyCache(cacheDir)
	if err != nil {
		// A broken cache file is rebuilt below.
		entry = nil
	}
	if policyCacheValid(entry, engine.Fingerprint(), hash) {
		cached := entry.Result
		return &cached, true, nil
	}

	result, err := engine.Evaluate(tables)
	if err != nil {
		return nil, false, err
	}
	if err := savePolicyCache(cacheDir, policyCacheEntry{
		RulesHash:  engine.Fingerprint(),
		TablesHash: hash,
		Result:     *result,
	}); err != nil {
		return result, false, err
	}
	return result, false, nil
}

// ClearPolicyCache removes the stored rule result from cacheDir.
func ClearPolicyCache(cacheDir string) error {
	if err := os.Remove(policyCachePath(cacheDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove policy cache: %w", err)
	}
	return nil
}
