package filemanager

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const printCSS = `@page{size:A4;margin:12mm}
body{-webkit-print-color-adjust:exact;print-color-adjust:exact}
.cv-downloads,.cv-contact-form,.cv-calendar{display:none!important}
.cv-print-notice{font-style:italic;color:#555}`

const mediaNotice = "Media content is available in the online version of this CV."

// Printable rewrites an HTML document for static output: scripts and inline
// event handlers are dropped, audio and video become a notice, buttons become
// plain text and a print stylesheet is appended to the head.
func Printable(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	rewrite(root)

	if head := find(root, atom.Head); head != nil {
		style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: printCSS})
		head.AppendChild(style)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func rewrite(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Script:
				n.RemoveChild(c)
				c = next
				continue
			case atom.Audio, atom.Video:
				notice := &html.Node{
					Type:     html.ElementNode,
					Data:     "p",
					DataAtom: atom.P,
					Attr:     []html.Attribute{{Key: "class", Val: "cv-print-notice"}},
				}
				notice.AppendChild(&html.Node{Type: html.TextNode, Data: mediaNotice})
				n.InsertBefore(notice, c)
				n.RemoveChild(c)
				c = next
				continue
			case atom.Button:
				c.Data = "span"
				c.DataAtom = atom.Span
				c.Attr = keepAttrs(c.Attr, "class")
			}
			c.Attr = dropHandlers(c.Attr)
		}
		rewrite(c)
		c = next
	}
}

func dropHandlers(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		if strings.HasPrefix(strings.ToLower(a.Key), "on") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func keepAttrs(attrs []html.Attribute, keys ...string) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		for _, k := range keys {
			if a.Key == k {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, a); f != nil {
			return f
		}
	}
	return nil
}
