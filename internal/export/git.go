package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitOptions configures a GitDestination.
type GitOptions struct {
	Repo    string // path to an existing local clone
	File    string // export path within the repo
	Branch  string
	Remote  string // remote to pull from and push to; empty keeps commits local
	Message string // commit message; defaults to "export: update MAX snapshot"
}

// GitDestination commits JSONL exports into a git repository.
type GitDestination struct {
	opts GitOptions
}

// NewGitDestination creates a git destination.
func NewGitDestination(opts GitOptions) *GitDestination {
	if opts.Message == "" {
		opts.Message = "export: update MAX snapshot"
	}
	return &GitDestination{opts: opts}
}

// Write writes data to the configured file and commits it when it changed.
// With a remote configured the branch is pulled first and pushed after.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.git(ctx, "checkout", d.opts.Branch); err != nil {
		return fmt.Errorf("git checkout: %w", err)
	}
	if d.opts.Remote != "" {
		// The remote may not have the branch yet.
		_ = d.git(ctx, "pull", "--ff-only", d.opts.Remote, d.opts.Branch)
	}

	filePath := filepath.Join(d.opts.Repo, d.opts.File)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if err := d.git(ctx, "add", d.opts.File); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	// Exit status 0 means nothing is staged.
	if err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	if err := d.git(ctx, "commit", "-m", d.opts.Message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}

	if d.opts.Remote != "" {
		if err := d.git(ctx, "push", d.opts.Remote, d.opts.Branch); err != nil {
			return fmt.Errorf("git push: %w", err)
		}
	}
	return nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.opts.Repo
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
