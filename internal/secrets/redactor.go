package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding describes one redacted secret. The secret value itself is never
// kept.
type Finding struct {
	RuleID   string
	RuleDesc string
	Line     int
}

// Result is redacted content plus what was removed.
type Result struct {
	Content  string
	Findings []Finding
}

// Redactor detects secrets with the gitleaks default ruleset and replaces
// them with [REDACTED:<rule>] markers. No part of the secret survives.
type Redactor struct {
	detector  *detect.Detector
	pathAllow []*regexp.Regexp

	// gitleaks detectors are not documented as safe for concurrent use.
	mu sync.Mutex
}

// NewRedactor builds a Redactor. allowlist may be nil.
func NewRedactor(allowlist *Allowlist) (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}

	r := &Redactor{detector: detector}
	if allowlist != nil {
		if err := allowlist.apply(&detector.Config); err != nil {
			return nil, err
		}
		if r.pathAllow, err = allowlist.compilePaths(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Redact scrubs content read from path.
func (r *Redactor) Redact(path, content string) Result {
	for _, re := range r.pathAllow {
		if re.MatchString(path) {
			return Result{Content: content}
		}
	}

	r.mu.Lock()
	found := r.detector.DetectString(content)
	r.mu.Unlock()

	if len(found) == 0 {
		return Result{Content: content}
	}

	markers := make(map[string]string, len(found))
	findings := make([]Finding, 0, len(found))
	for _, f := range found {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" {
			continue
		}
		if _, seen := markers[secret]; !seen {
			markers[secret] = "[REDACTED:" + f.RuleID + "]"
		}
		findings = append(findings, Finding{RuleID: f.RuleID, RuleDesc: f.Description, Line: f.StartLine + 1})
	}

	return Result{Content: replaceSecrets(content, markers), Findings: findings}
}

// replaceSecrets substitutes every occurrence of each secret, longest first
// so a secret containing another is replaced whole.
func replaceSecrets(content string, markers map[string]string) string {
	secrets := make([]string, 0, len(markers))
	for s := range markers {
		secrets = append(secrets, s)
	}
	sort.Slice(secrets, func(i, j int) bool {
		if len(secrets[i]) != len(secrets[j]) {
			return len(secrets[i]) > len(secrets[j])
		}
		return secrets[i] < secrets[j]
	})

	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		pairs = append(pairs, s, markers[s])
	}
	return strings.NewReplacer(pairs...).Replace(content)
}
