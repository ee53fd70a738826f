// Package gitsource pulls the worker's code from its git remote.
package gitsource

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"watchkeeper/internal/config"
)

// Runner executes git with args inside dir and returns combined output.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// PullResult reports what a pull did.
type PullResult struct {
	Changed bool
	Before  string
	After   string
	Output  string
}

// Repo is a working copy updated with fast-forward pulls.
type Repo struct {
	dir     string
	remote  string
	branch  string
	timeout time.Duration
	ttl     time.Duration
	run     Runner
	now     func() time.Time

	sf    singleflight.Group
	mu    sync.Mutex
	rev   string
	revAt time.Time
}

func New(cfg config.UpdateConfig) *Repo {
	return &Repo{
		dir:     cfg.Directory,
		remote:  cfg.Remote,
		branch:  cfg.Branch,
		timeout: cfg.TimeoutDuration(),
		ttl:     cfg.RevisionTTLDuration(),
		run:     execGit,
		now:     time.Now,
	}
}

// Pull fetches and fast-forwards the working copy. Changed is true when HEAD
// moved.
func (r *Repo) Pull(ctx context.Context) (PullResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	before, err := r.head(ctx)
	if err != nil {
		return PullResult{}, err
	}

	args := []string{"pull", "--ff-only"}
	if r.remote != "" {
		args = append(args, r.remote)
		if r.branch != "" {
			args = append(args, r.branch)
		}
	}
	out, err := r.run(ctx, r.dir, args...)
	if err != nil {
		return PullResult{Before: before, Output: out}, errors.Wrap(err, "git pull")
	}

	after, err := r.head(ctx)
	if err != nil {
		return PullResult{Before: before, Output: out}, err
	}

	r.mu.Lock()
	r.rev, r.revAt = Short(after), r.now()
	r.mu.Unlock()

	return PullResult{
		Changed: before != after,
		Before:  before,
		After:   after,
		Output:  strings.TrimSpace(out),
	}, nil
}

// Revision returns the short HEAD hash. Results are cached for the
// configured TTL and concurrent lookups share one git invocation.
func (r *Repo) Revision(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.rev != "" && r.now().Sub(r.revAt) < r.ttl {
		rev := r.rev
		r.mu.Unlock()
		return rev, nil
	}
	r.mu.Unlock()

	v, err, _ := r.sf.Do("revision", func() (interface{}, error) {
		full, err := r.head(ctx)
		if err != nil {
			return "", err
		}
		rev := Short(full)
		r.mu.Lock()
		r.rev, r.revAt = rev, r.now()
		r.mu.Unlock()
		return rev, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Repo) head(ctx context.Context) (string, error) {
	out, err := r.run(ctx, r.dir, "rev-parse", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, "git rev-parse")
	}
	return strings.TrimSpace(out), nil
}

// Short abbreviates a commit hash to seven characters.
func Short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "%s", strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
