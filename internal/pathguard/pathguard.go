// Package pathguard resolves board roots to a canonical absolute path and
// confines every subsequent path to that root, case-fold safe regardless
// of the host filesystem's own case sensitivity.
package pathguard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kanban-mcp/kanban/internal/kerr"
)

// Guard confines all path resolution to one canonicalized board root.
type Guard struct {
	root string // absolute, symlink-resolved, OS-native separators
}

// New resolves root to its canonical absolute form and returns a Guard
// scoped to it. Symlinks are followed when they can be resolved; if
// resolution fails (boards may not exist yet on first run), the cleaned
// absolute path is used instead. New fails only when root cannot be made
// absolute.
func New(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, kerr.Invalid("resolve board root %q: %v", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root may not exist yet (first `kanban mcp` run); fall back to
		// the cleaned absolute path so later Mkdir calls can create it.
		resolved = filepath.Clean(abs)
	}
	return &Guard{root: resolved}, nil
}

// Root returns the canonical absolute board root.
func (g *Guard) Root() string { return g.root }

// BoardID derives the opaque board identifier from the canonical root:
// the first 16 hex characters of SHA-256(root), case-folded so the id is
// stable across platforms that normalize path case differently.
func (g *Guard) BoardID() string {
	sum := sha256.Sum256([]byte(strings.ToLower(g.root)))
	return hex.EncodeToString(sum[:])[:16]
}

// Resolve joins root with rel (a slash-separated relative path) and
// verifies the result stays within root after normalization. It never
// touches the filesystem, so it is safe to call before a path exists.
func (g *Guard) Resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.Join(g.root, filepath.FromSlash(rel)))
	if !g.contains(clean) {
		return "", kerr.Permission("path %q escapes board root", rel)
	}
	return clean, nil
}

// contains reports whether p (already Clean'd and absolute) is root or a
// descendant of root, using case-fold comparison uniformly across
// platforms per spec §4.1.
func (g *Guard) contains(p string) bool {
	root := strings.ToLower(filepath.Clean(g.root))
	target := strings.ToLower(filepath.Clean(p))
	if target == root {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(target, root+sep)
}

// EqualPath reports whether a and b refer to the same path using
// case-fold comparison, regardless of host FS case sensitivity.
func EqualPath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

// EqualID reports whether two card ids are the same under case-fold
// comparison (ids are always stored upper-case, but callers may pass
// lower-case ids from the wire).
func EqualID(a, b string) bool {
	return strings.EqualFold(a, b)
}

var (
	slugUnsafe  = regexp.MustCompile(`[^a-z0-9]+`)
	reservedWin = regexp.MustCompile(`^(con|nul|prn|aux|com[1-9]|lpt[1-9])$`)
)

// Slug converts title into a filesystem-safe slug: lowercase ASCII,
// non-alphanumeric runs collapsed to a single hyphen, leading/trailing
// hyphens stripped, truncated to 40 code units, reserved Windows device
// names suffixed with "-x", and an empty result replaced with "card".
func Slug(title string) string {
	lower := strings.ToLower(title)
	s := slugUnsafe.ReplaceAllString(lower, "-")
	s = strings.Trim(s, "-")
	if len(s) > 40 {
		s = strings.Trim(s[:40], "-")
	}
	if s == "" {
		s = "card"
	}
	if reservedWin.MatchString(s) {
		s += "-x"
	}
	return s
}

// CardFilename composes the canonical "<ULID>__<slug>.md" filename.
func CardFilename(id, title string) string {
	return fmt.Sprintf("%s__%s.md", strings.ToUpper(id), Slug(title))
}

// cardNamePattern matches "<26-char-ULID>__<anything>.md".
var cardNamePattern = regexp.MustCompile(`^([0-7][0-9A-HJKMNP-TV-Z]{25})__.*\.md$`)

// ParseCardFilename extracts the ULID from a card filename, or reports ok
// = false if name does not match "<ULID>__*.md".
func ParseCardFilename(name string) (id string, ok bool) {
	m := cardNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}
