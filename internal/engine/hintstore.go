package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	hintStoreFileName = "state.json"
	maxHintsPerSymbol  = 10
	observeTopN        = 20
)

// hintStoreFile is the on-disk JSON shape persisted at <cache_dir>/state.json.
type hintStoreFile struct {
	SymbolHits      map[string][]string `json:"symbol_hits"`
	DirectoryScores map[string]int      `json:"directory_scores"`
}

// HintStore is the persistent, durable mapping of symbol -> recent hit paths
// and directory -> hit-frequency score. It is held exclusively by one
// engine instance for the lifetime of that engine.
type HintStore struct {
	mu sync.Mutex

	path  string
	dirty bool

	symbolHits      map[string][]string
	directoryScores map[string]int

	log zerolog.Logger
}

// LoadHintStore loads the hint store from <cacheDir>/state.json. A missing or
// malformed file yields an empty store; a malformed file also logs a warning.
func LoadHintStore(cacheDir string, log zerolog.Logger) *HintStore {
	store := &HintStore{
		path:            filepath.Join(cacheDir, hintStoreFileName),
		symbolHits:      map[string][]string{},
		directoryScores: map[string]int{},
		log:             log,
	}

	raw, err := os.ReadFile(store.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", store.path).Msg("hint store read failed, starting empty")
		}
		return store
	}

	var parsed hintStoreFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Warn().Err(err).Str("path", store.path).Msg("hint store malformed, starting empty")
		return store
	}

	if parsed.SymbolHits != nil {
		store.symbolHits = parsed.SymbolHits
	}
	if parsed.DirectoryScores != nil {
		store.directoryScores = parsed.DirectoryScores
	}
	return store
}

// HintsForSymbol returns the hinted paths for symbol that currently exist on
// disk and whose leaf name does not begin with '.'.
func (h *HintStore) HintsForSymbol(root, symbol string) []string {
	h.mu.Lock()
	paths := append([]string(nil), h.symbolHits[symbol]...)
	h.mu.Unlock()

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.HasPrefix(filepath.Base(p), ".") {
			continue
		}
		full := p
		if root != "" && !filepath.IsAbs(p) {
			full = filepath.Join(root, p)
		}
		if _, err := os.Stat(full); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TopDirectories returns the k directories with the highest score that
// currently exist as directories. Ties may break arbitrarily.
func (h *HintStore) TopDirectories(root string, k int) []string {
	h.mu.Lock()
	type scored struct {
		dir   string
		score int
	}
	entries := make([]scored, 0, len(h.directoryScores))
	for d, s := range h.directoryScores {
		entries = append(entries, scored{d, s})
	}
	h.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	out := make([]string, 0, k)
	for _, e := range entries {
		if len(out) >= k {
			break
		}
		full := e.dir
		if root != "" && !filepath.IsAbs(e.dir) {
			full = filepath.Join(root, e.dir)
		}
		info, err := os.Stat(full)
		if err != nil || !info.IsDir() {
			continue
		}
		out = append(out, e.dir)
	}
	return out
}

// Observe records hits against symbol: a no-op when hits is empty. The
// top-10 hit paths are appended (deduplicated, preserving existing order)
// and the parent directory of each of the top-20 hits has its counter
// incremented by one; hits directly under the root (parent ".") are not
// counted.
func (h *HintStore) Observe(symbol string, hits []SearchHit) {
	if len(hits) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	existing := h.symbolHits[symbol]
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p] = true
	}

	limit := len(hits)
	if limit > maxHintsPerSymbol {
		limit = maxHintsPerSymbol
	}
	for _, hit := range hits[:limit] {
		if seen[hit.Path] {
			continue
		}
		seen[hit.Path] = true
		existing = append(existing, hit.Path)
	}
	if len(existing) > maxHintsPerSymbol {
		existing = existing[:maxHintsPerSymbol]
	}
	h.symbolHits[symbol] = existing

	dirLimit := len(hits)
	if dirLimit > observeTopN {
		dirLimit = observeTopN
	}
	for _, hit := range hits[:dirLimit] {
		dir := filepath.Dir(hit.Path)
		if dir == "." || dir == "" {
			continue
		}
		h.directoryScores[dir]++
	}

	h.dirty = true
}

// Save writes the store to disk via write-to-temp-then-rename, a no-op when
// the store is not dirty.
func (h *HintStore) Save() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return
	}

	payload := hintStoreFile{
		SymbolHits:      h.symbolHits,
		DirectoryScores: h.directoryScores,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn().Err(err).Msg("hint store marshal failed")
		return
	}

	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			h.log.Warn().Err(err).Str("dir", dir).Msg("hint store directory create failed")
			return
		}
	}

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		h.log.Warn().Err(err).Str("path", tmp).Msg("hint store write failed")
		return
	}
	if err := os.Rename(tmp, h.path); err != nil {
		h.log.Warn().Err(err).Str("path", h.path).Msg("hint store rename failed")
		return
	}

	h.dirty = false
}
