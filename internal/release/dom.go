package release

import (
	"strings"

	"golang.org/x/net/html"
)

type nodeMatcher func(n *html.Node) bool

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// findAll returns the element descendants of root (root included) matching
// m, in document order.
func findAll(root *html.Node, m nodeMatcher) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && m(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

func tag(name string) nodeMatcher {
	return func(n *html.Node) bool { return n.Data == name }
}

func class(name string) nodeMatcher {
	return func(n *html.Node) bool { return hasClass(n, name) }
}

func and(ms ...nodeMatcher) nodeMatcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

func attrEquals(key, val string) nodeMatcher {
	return func(n *html.Node) bool {
		v, ok := attr(n, key)
		return ok && v == val
	}
}

func pageTitle(root *html.Node) string {
	if titles := findAll(root, tag("title")); len(titles) > 0 {
		return text(titles[0])
	}
	return ""
}

// elementNames lists the first limit element names in document order.
func elementNames(root *html.Node, limit int) []string {
	var names []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			names = append(names, n.Data)
		}
		return len(names) < limit
	})
	return names
}
