// Package attach turns files under a sandbox root into message file parts.
package attach

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/petasbytes/recall-agent/internal/errs"
)

// Error codes for sandbox violations.
const (
	CodeOutsideSandbox = "PATH_OUTSIDE_SANDBOX"
	CodeDeniedRead     = "DENIED_READ"
	CodeNotAFile       = "NOT_A_FILE"
	CodeTooLarge       = "FILE_TOO_LARGE"
)

// Sandbox resolves relative paths under one root directory.
type Sandbox struct {
	root     string
	maxBytes int64
	// deny lists root-relative directories that are never readable.
	deny []string
}

type Option func(*Sandbox)

// WithMaxBytes caps the size of a single attachment.
func WithMaxBytes(n int64) Option {
	return func(s *Sandbox) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithDeny adds root-relative directories that may not be read.
func WithDeny(dirs ...string) Option {
	return func(s *Sandbox) {
		for _, d := range dirs {
			s.deny = append(s.deny, filepath.ToSlash(filepath.Clean(d)))
		}
	}
}

const DefaultMaxBytes = 5 << 20

// NewSandbox resolves root to an absolute, symlink-free path. An empty root
// means the working directory. Reads under .git/ and .agent/ are denied.
func NewSandbox(root string, opts ...Option) (*Sandbox, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs(%s): %w", root, err)
	}
	// If EvalSymlinks fails (e.g. non-existent), keep the absolute path.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	s := &Sandbox{root: abs, maxBytes: DefaultMaxBytes, deny: []string{".git", ".agent"}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sandbox) Root() string { return s.root }

// Resolve returns the absolute path of rel inside the sandbox. It rejects
// absolute inputs, parent traversal, symlink escapes and denied directories.
func (s *Sandbox) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", errs.New(CodeOutsideSandbox, "absolute paths are not allowed")
	}
	cleaned := filepath.Clean(rel)
	candidate := filepath.Join(s.root, cleaned)

	// Resolve the whole candidate if it exists, otherwise its parent, so a
	// symlinked parent cannot hide an escape.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(parent, filepath.Base(candidate))
	}

	r, err := filepath.Rel(s.root, candidate)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", errs.New(CodeOutsideSandbox, "%s resolves outside the sandbox root", rel)
	}

	slash := filepath.ToSlash(r)
	for _, d := range s.deny {
		if slash == d || strings.HasPrefix(slash, d+"/") {
			return "", errs.New(CodeDeniedRead, "reads under %s/ are not allowed", d)
		}
	}
	return candidate, nil
}
