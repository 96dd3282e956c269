// Package extract turns one wishlist listing node into a RawItem using declarative rules.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is the query surface rules run against. It hides the HTML engine.
type Node interface {
	// Text returns the trimmed text of the first element matching selector.
	Text(selector string) string
	// Attr returns the attribute of the first element matching selector.
	Attr(selector, name string) string
	// Markup returns the node's own HTML, used by pattern-only rules.
	Markup() string
}

// SelectionNode adapts a goquery selection, which is what colly hands to OnHTML callbacks.
type SelectionNode struct {
	sel *goquery.Selection
}

// NewSelectionNode wraps sel.
func NewSelectionNode(sel *goquery.Selection) *SelectionNode {
	return &SelectionNode{sel: sel}
}

func (n *SelectionNode) Text(selector string) string {
	return strings.TrimSpace(n.sel.Find(selector).First().Text())
}

func (n *SelectionNode) Attr(selector, name string) string {
	value, _ := n.sel.Find(selector).First().Attr(name)
	return strings.TrimSpace(value)
}

func (n *SelectionNode) Markup() string {
	html, err := goquery.OuterHtml(n.sel)
	if err != nil {
		return ""
	}
	return html
}
