package corpus

import (
	"fmt"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"k8s.io/klog/v2"

	"github.com/nmtgo/translator/internal/files"
)

// Pair is one aligned, preprocessed sentence pair as stored in the cache.
// First/Second follow corpus file column order (English first).
type Pair struct {
	First  string `parquet:"first"`
	Second string `parquet:"second"`
}

// cachePath returns the parquet cache file for a language pair.
func (l *Loader) cachePath(langPair string) string {
	name := fmt.Sprintf("%s.pairs.parquet", langPair)
	if l.Limit > 0 {
		name = fmt.Sprintf("%s.%d.pairs.parquet", langPair, l.Limit)
	}
	return filepath.Join(l.DataDir, name)
}

// loadCache returns cached preprocessed pairs when the cache exists and is
// at least as new as the raw corpus file.
func (l *Loader) loadCache(langPair, rawPath string) ([]Pair, bool) {
	path := l.cachePath(langPair)
	if !files.Exists(path) || !files.IsNewer(path, rawPath) {
		return nil, false
	}
	pairs, err := parquet.ReadFile[Pair](path)
	if err != nil {
		klog.Warningf("ignoring unreadable corpus cache %q: %v", path, err)
		return nil, false
	}
	if len(pairs) == 0 {
		return nil, false
	}
	klog.Infof("Loaded %d preprocessed pairs from cache %s", len(pairs), path)
	return pairs, true
}

// saveCache writes preprocessed pairs to the parquet cache. Failures are
// logged and otherwise ignored; the cache is an optimization.
func (l *Loader) saveCache(langPair string, pairs []Pair) {
	path := l.cachePath(langPair)
	if err := parquet.WriteFile(path, pairs); err != nil {
		klog.Warningf("failed to write corpus cache %q: %v", path, err)
		return
	}
	klog.Infof("Cached %d preprocessed pairs in %s", len(pairs), path)
}
