// Package textutil extracts patterns and plain text from scraped markup.
package textutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// First returns the first match of pattern in text.
func First(pattern *regexp.Regexp, text string) (string, bool) {
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}

// All returns every non-overlapping match of pattern in text, in order.
func All(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

// PlainText renders an HTML fragment as its visible text: every text node
// trimmed, empty ones dropped, the rest joined by single spaces.
// Malformed markup is parsed leniently; an unreadable fragment yields "".
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return Text(doc.Selection)
}

// Text renders the text content of every node in the selection the same
// way PlainText does.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collect(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collect(node *html.Node, parts *[]string) {
	switch node.Type {
	case html.TextNode:
		if s := strings.TrimSpace(node.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if node.Data == "script" || node.Data == "style" || node.Data == "template" {
			return
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collect(child, parts)
	}
}
