package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	imageFileRe     = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)(?:\?.*)?$`)
	resizeCacheRe   = regexp.MustCompile(`/resize_cache/(.+?)/\d+_\d+_\d+/`)
	thumbSegmentRe  = regexp.MustCompile(`(?i)/(?:thumbs?|thumbnails?|small|preview|mini)/`)
	sizeSuffixRe    = regexp.MustCompile(`[-_]\d{2,4}x\d{2,4}(\.[A-Za-z]{3,4})(\?.*)?$`)
	thumbSuffixRe   = regexp.MustCompile(`(?i)[-_](?:thumb|small|preview)(\.[A-Za-z]{3,4})(\?.*)?$`)
	imageAttributes = []string{"data-large", "data-zoom-image", "data-big", "data-full", "data-original", "data-src", "src", "href"}
)

// imageSources are gathered in order: the thumbnail strip, direct links to
// uploaded files, then generic gallery containers.
var imageSources = []func(p *Page) []string{
	selectorImages(`[class*="thumb"] img, [class*="thumb"] a[href], [class*="thumb"][data-large]`),
	uploadLinks,
	selectorImages(`[class*="gallery"] img, [class*="slider"] img, [class*="swiper"] img, [class*="carousel"] img, [class*="fotorama"] img, [class*="gallery"] a[href]`),
}

var mainImageStrategies = []Strategy{
	attr(`meta[property="og:image"]`, "content"),
	attr(`[itemprop="image"]`, "content"),
	attr(`img[itemprop="image"]`, "src"),
	attr(`link[itemprop="image"]`, "href"),
}

// Images returns the primary image and at most MaxAdditionalImages further
// full-size images, none equal to the primary and none repeated.
func Images(p *Page, limit int) (string, []string) {
	main := ""
	if raw := firstOf(p, mainImageStrategies...); raw != "" {
		main = fullSize(resolveURL(p.URL, raw))
	}

	var candidates []string
	for _, source := range imageSources {
		for _, raw := range source(p) {
			if u := fullSize(resolveURL(p.URL, raw)); u != "" {
				candidates = append(candidates, u)
			}
		}
	}

	if main == "" && len(candidates) > 0 {
		main = candidates[0]
	}

	seen := map[string]bool{main: true}
	additional := make([]string, 0, limit)
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		additional = append(additional, c)
		if len(additional) == limit {
			break
		}
	}
	return main, additional
}

func selectorImages(selector string) func(p *Page) []string {
	return func(p *Page) []string {
		var out []string
		p.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			for _, name := range imageAttributes {
				v, ok := s.Attr(name)
				if !ok || v == "" {
					continue
				}
				if name == "href" && !imageFileRe.MatchString(v) {
					continue
				}
				out = append(out, v)
				return
			}
		})
		return out
	}
}

func uploadLinks(p *Page) []string {
	var out []string
	p.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.Contains(href, "/upload/") && imageFileRe.MatchString(href) {
			out = append(out, href)
		}
	})
	return out
}

// resolveURL makes protocol-relative, root-relative and relative references
// absolute against the page URL. Non-http results are dropped.
func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "javascript:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// fullSize rewrites known thumbnail paths to their original image.
func fullSize(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(strings.SplitN(u, "?", 2)[0]), ".svg") {
		return ""
	}
	u = resizeCacheRe.ReplaceAllString(u, "/$1/")
	u = thumbSegmentRe.ReplaceAllString(u, "/")
	u = sizeSuffixRe.ReplaceAllString(u, "$1$2")
	u = thumbSuffixRe.ReplaceAllString(u, "$1$2")
	return u
}
