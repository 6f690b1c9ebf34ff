// Package content models a page document as an abstract tree of content
// nodes, so text extraction is testable against synthetic trees instead of a
// live DOM.
package content

import "strings"

// UIMarker is the reserved id/class identifying the extension's own on-page
// elements. Subtrees carrying it are never extracted.
const UIMarker = "pagecap-ui"

// skipTags are non-content tags whose subtrees are never walked.
var skipTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"svg":      {},
	"meta":     {},
	"head":     {},
	"template": {},
	"noscript": {},
	"link":     {},
}

// Node is one element or text node of a page document.
type Node struct {
	Tag      string // empty for bare text nodes
	ID       string
	Class    string
	Text     string
	Children []*Node
}

// ExtractText walks the subtree rooted at n and concatenates descendant
// text, skipping non-content tags and the extension's own UI elements.
func ExtractText(n *Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	walk(n, &parts)
	return strings.Join(parts, " ")
}

func walk(n *Node, parts *[]string) {
	if skipped(n) {
		return
	}
	if t := strings.TrimSpace(n.Text); t != "" {
		*parts = append(*parts, t)
	}
	for _, c := range n.Children {
		walk(c, parts)
	}
}

func skipped(n *Node) bool {
	if _, ok := skipTags[strings.ToLower(n.Tag)]; ok {
		return true
	}
	if n.ID == UIMarker {
		return true
	}
	for _, c := range strings.Fields(n.Class) {
		if c == UIMarker {
			return true
		}
	}
	return false
}
