// Package github implements repository.Host over the GitHub contents API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/reporover/internal/config"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrRateLimited indicates GitHub refused the call for rate limiting.
	ErrRateLimited = errors.New("github rate limit exceeded")

	// ErrNotDirectory indicates a listing was requested for a file path.
	ErrNotDirectory = errors.New("path is not a directory")
)

// NewClient creates a GitHub API client. Without a token the client is
// anonymous and limited to public repositories.
func NewClient(ctx context.Context, cfg config.GitHubConfig) (*github.Client, *http.Client, error) {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var hc *http.Client
	if cfg.Token.IsSet() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()})
		hc = oauth2.NewClient(ctx, ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = timeout

	client := github.NewClient(hc)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing github base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}
	return client, hc, nil
}

// classify maps go-github rate limit errors onto ErrRateLimited.
func classify(err error) error {
	var rl *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &rl) || errors.As(err, &abuse) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}
