package depscan

import (
	"bytes"

	"golang.org/x/net/html"
)

func scanHTML(body []byte) ([]reference, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var refs []reference
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := attr(n, "href"); href != "" {
					refs = append(refs, reference{typ: TypeLink, dest: href})
				}
			case "img", "script", "video", "audio", "source":
				if src := attr(n, "src"); src != "" {
					refs = append(refs, reference{typ: TypeAsset, dest: src})
				}
			case "link":
				if href := attr(n, "href"); href != "" && attr(n, "rel") == "stylesheet" {
					refs = append(refs, reference{typ: TypeAsset, dest: href})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
