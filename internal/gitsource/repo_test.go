package gitsource

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchkeeper/internal/config"
)

// fakeGit serves rev-parse from a scripted list of heads and records pulls.
type fakeGit struct {
	mu      sync.Mutex
	heads   []string
	pullErr error
	calls   [][]string
	revs    atomic.Int32
}

func (f *fakeGit) run(_ context.Context, _ string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)

	switch args[0] {
	case "rev-parse":
		f.revs.Add(1)
		head := f.heads[0]
		if len(f.heads) > 1 {
			f.heads = f.heads[1:]
		}
		return head + "\n", nil
	case "pull":
		if f.pullErr != nil {
			return "fatal: unable to access remote", f.pullErr
		}
		return "Updating 1111111..2222222\nFast-forward\n", nil
	}
	return "", errors.New("unexpected git call: " + strings.Join(args, " "))
}

func newTestRepo(g *fakeGit, branch string) *Repo {
	r := New(config.UpdateConfig{Directory: ".", Remote: "origin", Branch: branch, Timeout: 5, RevisionTTL: 60})
	r.run = g.run
	return r
}

func TestPull_Changed(t *testing.T) {
	g := &fakeGit{heads: []string{"1111111aaaa", "2222222bbbb"}}
	r := newTestRepo(g, "main")

	res, err := r.Pull(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, "1111111aaaa", res.Before)
	assert.Equal(t, "2222222bbbb", res.After)
	assert.Contains(t, res.Output, "Fast-forward")
	assert.Equal(t, []string{"pull", "--ff-only", "origin", "main"}, g.calls[1])

	rev, err := r.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2222222", rev, "pull refreshes the cached revision")
}

func TestPull_NoChange(t *testing.T) {
	g := &fakeGit{heads: []string{"abcdef0123"}}
	r := newTestRepo(g, "")

	res, err := r.Pull(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []string{"pull", "--ff-only", "origin"}, g.calls[1])
}

func TestPull_Failure(t *testing.T) {
	g := &fakeGit{heads: []string{"abc"}, pullErr: errors.New("exit status 1")}
	r := newTestRepo(g, "")

	res, err := r.Pull(context.Background())
	require.Error(t, err)
	assert.False(t, res.Changed)
	assert.Contains(t, err.Error(), "git pull")
}

func TestRevision_CachedWithinTTL(t *testing.T) {
	g := &fakeGit{heads: []string{"aaaaaaaaaa", "bbbbbbbbbb"}}
	r := newTestRepo(g, "")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	rev, err := r.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaa", rev)

	rev, _ = r.Revision(context.Background())
	assert.Equal(t, "aaaaaaa", rev)
	assert.Equal(t, int32(1), g.revs.Load())

	now = now.Add(2 * time.Minute)
	rev, _ = r.Revision(context.Background())
	assert.Equal(t, "bbbbbbb", rev)
	assert.Equal(t, int32(2), g.revs.Load())
}
