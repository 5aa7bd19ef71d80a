package enrich

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// PageMeta is the metadata extracted from a fetched page.
type PageMeta struct {
	Title       string
	Description string
	SiteName    string
}

// ExtractMeta tokenizes HTML and pulls out the title, meta description, and
// OpenGraph site name. The tokenizer is streaming and never backtracks, so
// adversarial markup costs linear time; the reader is expected to be
// length-capped by the caller.
func ExtractMeta(r io.Reader) PageMeta {
	var meta PageMeta
	z := html.NewTokenizer(r)

	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; return whatever was collected.
			return meta

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = meta.Title == ""
			case "meta":
				handleMetaTag(tok, &meta)
			case "body":
				// Metadata lives in <head>; no need to scan the rest.
				return meta
			}

		case html.EndTagToken:
			if z.Token().Data == "title" {
				inTitle = false
			}

		case html.TextToken:
			if inTitle {
				meta.Title += strings.TrimSpace(z.Token().Data)
			}
		}
	}
}

func handleMetaTag(tok html.Token, meta *PageMeta) {
	var name, property, content string
	for _, attr := range tok.Attr {
		switch strings.ToLower(attr.Key) {
		case "name":
			name = strings.ToLower(attr.Val)
		case "property":
			property = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		}
	}
	if content == "" {
		return
	}

	switch {
	case name == "description" && meta.Description == "":
		meta.Description = strings.TrimSpace(content)
	case property == "og:description" && meta.Description == "":
		meta.Description = strings.TrimSpace(content)
	case property == "og:site_name" && meta.SiteName == "":
		meta.SiteName = strings.TrimSpace(content)
	case property == "og:title" && meta.Title == "":
		meta.Title = strings.TrimSpace(content)
	}
}
