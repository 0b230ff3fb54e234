// Package preview derives per-branch preview scopes: an isolated project
// key and state path computed from the base project and the checked-out
// git branch, so a config can be exercised without touching the main
// project's state.
package preview

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

const keyMaxLen = 32

// Spec is the computed identity of one branch preview.
type Spec struct {
	BaseProjectKey string
	Branch         string
	BranchSlug     string
	ProjectKey     string
	StatePath      string
}

var (
	slugRuns    = regexp.MustCompile(`[^a-z0-9]+`)
	segmentRuns = regexp.MustCompile(`[^A-Z0-9_]+`)
)

// Compute resolves the branch (the override if given, otherwise the
// branch checked out in dir) and derives the preview project key and
// state path from the base project's.
func Compute(baseKey, statePath, dir, branchOverride string) (*Spec, error) {
	branch, err := resolveBranch(dir, branchOverride)
	if err != nil {
		return nil, err
	}
	slug := slugBranch(branch)
	base := sanitizeSegment(baseKey)

	return &Spec{
		BaseProjectKey: base,
		Branch:         branch,
		BranchSlug:     slug,
		ProjectKey:     buildKey(base, slug),
		StatePath:      buildStatePath(statePath, slug),
	}, nil
}

// Cleanup removes the preview's state file along with its backup and
// lock artifacts. Files that never existed are fine.
func Cleanup(statePath string) error {
	for _, path := range []string{statePath, statePath + ".backup", statePath + ".lock"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func resolveBranch(dir, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	out, err := exec.Command("git", "-C", dir, "branch", "--show-current").Output()
	if err != nil {
		return "", fmt.Errorf("failed to run git branch --show-current: %w", err)
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" {
		return "", fmt.Errorf("could not determine current git branch (detached HEAD or not a git repository), pass --branch explicitly")
	}
	return branch, nil
}

// slugBranch lowercases the branch and collapses every run of other
// characters to a single underscore.
func slugBranch(branch string) string {
	slug := strings.Trim(slugRuns.ReplaceAllString(strings.ToLower(branch), "_"), "_")
	if slug == "" {
		return "preview"
	}
	return slug
}

// sanitizeSegment uppercases a value into a project key segment.
func sanitizeSegment(value string) string {
	segment := strings.Trim(segmentRuns.ReplaceAllString(strings.ToUpper(value), "_"), "_")
	if segment == "" {
		return "PREVIEW"
	}
	return segment
}

// buildKey joins base and branch segments. Keys over the length cap are
// truncated deterministically: the base stays visible and a short hash
// of the slug keeps distinct branches distinct.
func buildKey(baseKey, slug string) string {
	branchKey := sanitizeSegment(slug)
	candidate := baseKey + "__" + branchKey
	if len(candidate) <= keyMaxLen {
		return candidate
	}

	sum := sha1.Sum([]byte(slug))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))[:6]
	available := keyMaxLen - len("__") - len("_") - len(digest)
	basePart := truncate(baseKey, max(1, available-4))
	branchPart := truncate(branchKey, max(1, available-len(basePart)))
	return basePart + "__" + branchPart + "_" + digest
}

// buildStatePath inserts ".preview.<slug>" between the state file's stem
// and its extensions: "weft.state.json" becomes
// "weft.preview.<slug>.state.json".
func buildStatePath(statePath, slug string) string {
	dir := filepath.Dir(statePath)
	name := filepath.Base(statePath)

	trimmed := strings.TrimLeft(name, ".")
	lead := name[:len(name)-len(trimmed)]
	stem, exts, found := strings.Cut(trimmed, ".")

	previewName := lead + stem + ".preview." + slug
	if found {
		previewName += "." + exts
	}
	return filepath.Join(dir, previewName)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
