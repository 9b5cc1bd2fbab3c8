package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// allowedParents returns the fixed allow-list of directories a database path
// may resolve under: the system data directory, the temp directory, and the
// per-user config directory. extra entries widen the list (used by tests).
func allowedParents(extra []string) []string {
	parents := []string{"/var/lib/sentinel", os.TempDir()}
	if configDir, err := os.UserConfigDir(); err == nil {
		parents = append(parents, configDir)
	}
	parents = append(parents, extra...)
	return parents
}

// validatePath resolves the configured database path and enforces the parent
// allow-list. Symlinked ancestors are resolved so the check applies to the
// real location.
func validatePath(path string, extra []string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty database path")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	// The file itself may not exist yet; resolve the deepest existing ancestor.
	resolvedDir, err := resolveExistingAncestor(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(abs))

	for _, parent := range allowedParents(extra) {
		parentResolved, err := filepath.EvalSymlinks(parent)
		if err != nil {
			parentResolved = parent
		}
		if isUnder(resolved, parentResolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("path %q is outside the allowed data directories", path)
}

// resolveExistingAncestor walks up until a directory exists, resolves its
// symlinks, then reattaches the missing suffix.
func resolveExistingAncestor(dir string) (string, error) {
	missing := []string{}
	current := dir
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %q: %w", current, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %q", dir)
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

func isUnder(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
