package release

import (
	"golang.org/x/net/html"
)

// page is the parsed release listing handed to each strategy.
type page struct {
	url  string
	root *html.Node
}

// strategy extracts a raw version string from a page. Strategies run in
// order and the first one that reports ok wins. Plain links are only read
// inside a release container; elsewhere they mention unrelated versions.
type strategy struct {
	name    string
	extract func(p *page) (string, bool)
}

var (
	primaryLink = and(attrEquals("data-view-component", "true"), class("Link--primary"))
	anchor      = tag("a")
)

func defaultStrategies() []strategy {
	return []strategy{
		{name: "release-header", extract: containerLink(and(tag("div"), class("release-header")))},
		{name: "release", extract: containerLink(class("release"))},
		{name: "primary-link", extract: versionText(primaryLink)},
		{name: "meta", extract: metaReleaseTag},
		{name: "url", extract: urlReleaseTag},
	}
}

// containerLink finds containers matching m and returns the first link
// inside one whose text carries a version, preferring Link--primary links.
func containerLink(m nodeMatcher) func(p *page) (string, bool) {
	return func(p *page) (string, bool) {
		for _, container := range findAll(p.root, m) {
			if v, ok := versionText(and(anchor, class("Link--primary")))(&page{url: p.url, root: container}); ok {
				return v, true
			}
			if v, ok := versionText(anchor)(&page{url: p.url, root: container}); ok {
				return v, true
			}
		}
		return "", false
	}
}

// versionText returns the version carried by the text of the first element
// matching m that has one.
func versionText(m nodeMatcher) func(p *page) (string, bool) {
	return func(p *page) (string, bool) {
		for _, n := range findAll(p.root, m) {
			if match := versionPattern.FindString(text(n)); match != "" {
				return match, true
			}
		}
		return "", false
	}
}

func metaReleaseTag(p *page) (string, bool) {
	for _, meta := range findAll(p.root, tag("meta")) {
		content, ok := attr(meta, "content")
		if !ok {
			continue
		}
		if v, ok := versionFromTagPath(content); ok {
			return v, true
		}
	}
	return "", false
}

func urlReleaseTag(p *page) (string, bool) {
	return versionFromTagPath(p.url)
}
