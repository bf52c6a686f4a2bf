package registry

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// gitTimeout bounds a single git invocation. A fresh clone of the index
// takes a while on slow links.
const gitTimeout = 15 * time.Minute

// gitRunner runs git with args in dir.
type gitRunner func(ctx context.Context, dir string, args ...string) error

func execGit(ctx context.Context, dir string, args ...string) error {
	gitCtx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(gitCtx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
