package thumbnail

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const maxPreviewBytes = 2 << 20

// ExtractPreviewImage scans an HTML document for a social preview
// image (og:image, then twitter:image) and returns its URL resolved
// against base. Empty string when the page declares none.
func ExtractPreviewImage(doc io.Reader, base *url.URL) string {
	root, err := html.Parse(io.LimitReader(doc, maxPreviewBytes))
	if err != nil {
		return ""
	}

	var ogImage, twitterImage string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var key, content string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "property", "name":
					key = strings.ToLower(a.Val)
				case "content":
					content = a.Val
				}
			}
			switch key {
			case "og:image":
				if ogImage == "" {
					ogImage = content
				}
			case "twitter:image":
				if twitterImage == "" {
					twitterImage = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	chosen := ogImage
	if chosen == "" {
		chosen = twitterImage
	}
	if chosen == "" {
		return ""
	}

	ref, err := url.Parse(chosen)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// FetchPreviewImage loads pageURL and extracts its preview image URL.
func FetchPreviewImage(ctx context.Context, client *http.Client, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}

	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	return ExtractPreviewImage(resp.Body, base)
}
