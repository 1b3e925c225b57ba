package fetch

import (
	"strings"

	"github.com/desktop-updater/update-agent/internal/release"
)

// Filename expands a filename template. {version} and {version_clean} take
// the version without its leading v, {tag} keeps it.
func Filename(template string, v release.Version) string {
	return strings.NewReplacer(
		"{version}", v.Clean(),
		"{version_clean}", v.Clean(),
		"{tag}", v.String(),
	).Replace(template)
}

// DownloadBase rewrites a release-listing URL into the base that release
// assets are served from: a "latest" alias or a bare listing becomes
// .../releases/download.
func DownloadBase(listingURL string) string {
	base := strings.TrimRight(listingURL, "/")
	switch {
	case strings.Contains(base, "/releases/latest"):
		return strings.Replace(base, "/releases/latest", "/releases/download", 1)
	case strings.HasSuffix(base, "/releases"):
		return base + "/download"
	}
	return base
}

// DownloadURL joins the proxy prefix, the rewritten base, the release tag and
// the filename. An empty prefix downloads from the base host directly.
func DownloadURL(proxyPrefix, listingURL, tag, filename string) string {
	u := DownloadBase(listingURL) + "/" + tag + "/" + filename
	if proxyPrefix == "" {
		return u
	}
	if !strings.HasSuffix(proxyPrefix, "/") {
		proxyPrefix += "/"
	}
	return proxyPrefix + u
}
