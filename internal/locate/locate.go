// Package locate resolves primitive and recipe names to source files.
//
// The same name may exist several times across the search tree: an
// instrument-specific override, one variant per observing mode, and a generic
// fallback. The locator searches the configured tiers in priority order and
// resolves ambiguity within the first tier that matches at all.
package locate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// FallbackDir is the directory name whose matches act as the generic
// fallback, shadowed by any mode- or instrument-specific match.
const FallbackDir = "general"

const bucketInstrument = "instrument"

// Config names the search tiers, highest priority first. A tier takes part
// only when non-empty; the first tier producing any match settles the search
// and later tiers are not consulted.
type Config struct {
	// Explicit is the caller-supplied override directory list.
	Explicit []string
	// Override is the environment-configured search path.
	Override []string
	// Derived is the instrument/mode-derived search path.
	Derived []string
	// Instrument classifies candidates found under a directory named after
	// it as instrument-specific.
	Instrument string
}

// Locator finds the single most relevant source file for a name.
type Locator struct {
	cfg Config
	log *slog.Logger
}

// New builds a locator over the given search configuration.
func New(cfg Config, log *slog.Logger) *Locator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Locator{cfg: cfg, log: log}
}

type candidate struct {
	path   string
	bucket string
}

// Find resolves name to an absolute source path. A name containing a path
// separator is used directly and must exist. Otherwise the tiers are
// searched in order and ambiguity inside the matching tier is resolved by:
// discarding generic fallbacks when any specific match exists, letting an
// instrument-specific match win unconditionally, accepting a lone remaining
// mode bucket, and finally asking the current observing mode to choose.
func (l *Locator) Find(name string, mode domain.ObsMode) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", domain.Fatalf(name, "", 0, "cannot resolve path %s: %v", name, err)
		}
		if !isFile(abs) {
			return "", domain.Fatalf(name, "", 0, "no source file at %s", abs)
		}
		return abs, nil
	}

	for _, tier := range [][]string{l.cfg.Explicit, l.cfg.Override, l.cfg.Derived} {
		cands := l.collect(tier, name)
		if len(cands) == 0 {
			continue
		}
		path, err := l.resolve(name, cands, mode)
		if err != nil {
			return "", err
		}
		l.log.Debug("resolved primitive", "name", name, "path", path, "candidates", len(cands))
		return path, nil
	}
	return "", domain.Fatalf(name, "", 0, "primitive %s not found in search path", name)
}

func (l *Locator) collect(dirs []string, name string) []candidate {
	var cands []candidate
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if !isFile(p) {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{path: abs, bucket: l.classify(dir)})
	}
	return cands
}

// classify maps a search directory to its bucket by walking path segments
// from the deepest up: the instrument name marks an instrument-specific
// directory, a known observing mode marks a mode directory, and anything
// else (including FallbackDir) is the generic fallback.
func (l *Locator) classify(dir string) string {
	segs := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if l.cfg.Instrument != "" && strings.EqualFold(s, l.cfg.Instrument) {
			return bucketInstrument
		}
		for _, m := range domain.GenericModes() {
			if strings.EqualFold(s, string(m)) {
				return string(m)
			}
		}
		if strings.EqualFold(s, FallbackDir) {
			return FallbackDir
		}
	}
	return FallbackDir
}

func (l *Locator) resolve(name string, cands []candidate, mode domain.ObsMode) (string, error) {
	if len(cands) == 1 {
		return cands[0].path, nil
	}

	var specific []candidate
	for _, c := range cands {
		if c.bucket != FallbackDir {
			specific = append(specific, c)
		}
	}
	if len(specific) == 0 {
		// Only generic fallbacks match; the earliest search directory wins.
		return cands[0].path, nil
	}

	for _, c := range specific {
		if c.bucket == bucketInstrument {
			return c.path, nil
		}
	}

	var buckets []string
	seen := make(map[string]bool)
	for _, c := range specific {
		if !seen[c.bucket] {
			seen[c.bucket] = true
			buckets = append(buckets, c.bucket)
		}
	}
	if len(buckets) == 1 {
		return specific[0].path, nil
	}

	if mode != domain.ModeUnknown {
		for _, c := range specific {
			if c.bucket == string(mode) {
				return c.path, nil
			}
		}
	}
	return "", domain.Fatalf(name, "", 0,
		"primitive %s is ambiguous across %s and observing mode %q does not select one",
		name, strings.Join(buckets, ", "), mode)
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
