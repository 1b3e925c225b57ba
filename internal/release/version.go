package release

import (
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

var (
	versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)
	tagPathPattern = regexp.MustCompile(`/releases/tag/v?(\d+\.\d+\.\d+)`)
)

// Version is a release version in canonical v<major>.<minor>.<patch> form.
type Version string

// Normalize extracts the first major.minor.patch triple from raw and returns
// it in canonical form. The leading v is added when absent.
func Normalize(raw string) (Version, error) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fmt.Errorf("no version in %q", raw)
	}
	return fromCore(m[1])
}

func fromCore(core string) (Version, error) {
	v, err := goversion.NewVersion(core)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", core, err)
	}
	seg := v.Segments()
	for len(seg) < 3 {
		seg = append(seg, 0)
	}
	return Version(fmt.Sprintf("v%d.%d.%d", seg[0], seg[1], seg[2])), nil
}

func (v Version) String() string {
	return string(v)
}

// Clean returns the version without the leading v.
func (v Version) Clean() string {
	return strings.TrimPrefix(string(v), "v")
}

// Tag renders a release tag from template, where {version} is the clean
// version and {tag} the canonical one. An empty template yields the
// canonical version.
func (v Version) Tag(template string) string {
	if template == "" {
		return string(v)
	}
	return strings.NewReplacer(
		"{version}", v.Clean(),
		"{version_clean}", v.Clean(),
		"{tag}", string(v),
	).Replace(template)
}

// Compare returns -1, 0 or 1 when v is older than, equal to or newer than
// other.
func (v Version) Compare(other Version) (int, error) {
	a, err := goversion.NewVersion(v.Clean())
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", v, err)
	}
	b, err := goversion.NewVersion(other.Clean())
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", other, err)
	}
	return a.Compare(b), nil
}

// versionFromTagPath extracts the version from a /releases/tag/... path
// segment found anywhere in s.
func versionFromTagPath(s string) (string, bool) {
	if !strings.Contains(s, "/releases/tag/") {
		return "", false
	}
	m := tagPathPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
