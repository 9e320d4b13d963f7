// Package dom - снимок отрендеренной страницы с доступом к элементам по CSS-селекторам.
package dom

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element - один узел DOM.
type Element interface {
	// Text возвращает видимый текст; границы блочных элементов - переводы строк.
	Text() string
	// Attribute возвращает значение атрибута; href/src уже абсолютные.
	Attribute(name string) (string, bool)
	TagName() string
	FindAll(selector string) []Element
	FindFirst(selector string) (Element, bool)
}

// Page - корень снимка страницы.
type Page interface {
	URL() string
	FindAll(selector string) []Element
	FindFirst(selector string) (Element, bool)
}

type Document struct {
	doc  *goquery.Document
	base *url.URL
}

type Node struct {
	sel  *goquery.Selection
	base *url.URL
}

// Parse строит снимок из HTML; pageURL нужен для разрешения относительных ссылок
func Parse(htmlStr, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	return &Document{doc: doc, base: base}, nil
}

func (d *Document) URL() string {
	return d.base.String()
}

func (d *Document) FindAll(selector string) []Element {
	return wrapAll(d.doc.Find(selector), d.base)
}

func (d *Document) FindFirst(selector string) (Element, bool) {
	return first(d.doc.Find(selector), d.base)
}

func (n *Node) FindAll(selector string) []Element {
	return wrapAll(n.sel.Find(selector), n.base)
}

func (n *Node) FindFirst(selector string) (Element, bool) {
	return first(n.sel.Find(selector), n.base)
}

func (n *Node) TagName() string {
	return goquery.NodeName(n.sel)
}

func (n *Node) Attribute(name string) (string, bool) {
	val, ok := n.sel.Attr(name)
	if !ok {
		return "", false
	}

	switch strings.ToLower(name) {
	case "href", "src":
		return resolve(n.base, val), true
	}
	return val, true
}

func (n *Node) Text() string {
	var b strings.Builder
	for _, node := range n.sel.Nodes {
		renderText(&b, node)
	}
	return b.String()
}

// renderText повторяет innerText грубо: script/style пропускаются,
// вокруг блочных элементов ставится перевод строки
func renderText(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.Data {
		case "script", "style", "noscript", "template":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
	}

	block := node.Type == html.ElementNode && blockTags[node.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "div": true,
	"dl": true, "dt": true, "dd": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

func wrapAll(sel *goquery.Selection, base *url.URL) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Node{sel: s, base: base})
	})
	return out
}

func first(sel *goquery.Selection, base *url.URL) (Element, bool) {
	if sel.Length() == 0 {
		return nil, false
	}
	return &Node{sel: sel.First(), base: base}, true
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
