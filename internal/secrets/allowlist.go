// Package secrets redacts credentials from repository content before it is
// chunked, embedded or shown to a language model.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

var (
	// ErrInvalidRegex indicates a regex pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates a TOML file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Allowlist holds patterns excluded from detection.
//
//	[allowlist]
//	paths = ['''^testdata/''']
//	regexes = ['''EXAMPLE_KEY_[0-9]+''']
type Allowlist struct {
	// Paths are regexes over repository paths whose content is left alone.
	Paths []string
	// Regexes are content patterns that are never treated as secrets.
	Regexes []string
}

// LoadAllowlist reads an allowlist file. A missing file yields an empty
// allowlist; an unparsable file or pattern is an error.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}

	var doc struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Allowlist{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	al := &Allowlist{Paths: doc.Allowlist.Paths, Regexes: doc.Allowlist.Regexes}
	if _, err := al.compilePaths(); err != nil {
		return nil, err
	}
	if _, err := compileAll(al.Regexes); err != nil {
		return nil, err
	}
	return al, nil
}

func (a *Allowlist) compilePaths() ([]*regexp.Regexp, error) {
	return compileAll(a.Paths)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// apply merges the content patterns into a gitleaks config.
func (a *Allowlist) apply(cfg *gitleaksConfig.Config) error {
	if len(a.Regexes) == 0 {
		return nil
	}
	res, err := compileAll(a.Regexes)
	if err != nil {
		return err
	}
	global := &gitleaksConfig.Allowlist{Description: "reporover allowlist"}
	for _, re := range res {
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, a.Regexes...)
	cfg.Allowlists = append(cfg.Allowlists, global)
	return nil
}
