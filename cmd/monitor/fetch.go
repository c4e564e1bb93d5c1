package main

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Desktop UA; the status pages serve reduced markup to unknown clients.
const uaChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// Reusable page client with sane timeout
var pageClient = resty.New().
	SetTimeout(10 * time.Second).
	SetHeader("User-Agent", uaChrome)

// fold half/full width variants to their canonical form
func foldWidth(s string) string {
	t := transform.Chain(width.Fold, norm.NFC)
	res, _, _ := transform.String(t, s)
	return res
}

// elements whose text never reaches the rendered page flow
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// flattenTokens walks the document in order and returns every trimmed,
// non-empty text fragment. Fragments are width-folded so that full-width
// digits, half-width katakana and the half-width middle dot compare
// canonically further down the pipeline.
func flattenTokens(doc *goquery.Document) []string {
	var tokens []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(foldWidth(n.Data)); t != "" {
				tokens = append(tokens, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Selection.Nodes {
		walk(n)
	}
	return tokens
}

// fetchTokens retrieves one status page and flattens it into the ordered
// token stream the extractor works on.
func fetchTokens(pageURL string) ([]string, error) {
	start := time.Now()
	resp, err := pageClient.R().Get(pageURL)
	if err != nil {
		return nil, err
	}
	fetchDuration.Observe(time.Since(start).Seconds())
	if resp.IsError() {
		msg := resp.String()
		if len(msg) > 4096 {
			msg = msg[:4096]
		}
		return nil, fmt.Errorf("http %d GET %s: %s", resp.StatusCode(), pageURL, strings.TrimSpace(msg))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, err
	}
	return flattenTokens(doc), nil
}
