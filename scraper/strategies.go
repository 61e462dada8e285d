package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

const maxNameLength = 500

// priceMetaTags is the ordered list of known price-bearing meta attributes.
var priceMetaTags = []struct {
	attr  string
	value string
}{
	{"property", "og:price:amount"},
	{"property", "product:price:amount"},
	{"property", "og:price"},
	{"name", "price"},
	{"itemprop", "price"},
}

var currencyMetaSelectors = []string{
	"meta[property='og:price:currency']",
	"meta[property='product:price:currency']",
}

// extractPriceFromMeta reads structured price meta tags.
func extractPriceFromMeta(doc *goquery.Document) (decimal.Decimal, string, bool) {
	for _, tag := range priceMetaTags {
		selector := fmt.Sprintf("meta[%s='%s']", tag.attr, tag.value)
		content, exists := doc.Find(selector).First().Attr("content")
		if !exists {
			continue
		}
		amount, ok := ParseAmount(content)
		if !ok {
			continue
		}
		currency := "USD"
		for _, currencySelector := range currencyMetaSelectors {
			if c, found := doc.Find(currencySelector).First().Attr("content"); found && c != "" {
				currency = strings.ToUpper(strings.TrimSpace(c))
				break
			}
		}
		return amount, currency, true
	}
	return decimal.Decimal{}, "", false
}

// extractPriceFromJSONLD parses embedded structured-data blocks looking for a
// Product entity with offers. Malformed blocks are skipped, not fatal.
func extractPriceFromJSONLD(doc *goquery.Document) (decimal.Decimal, string, bool) {
	var (
		price    decimal.Decimal
		currency string
		found    bool
	)
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if p, c, ok := priceFromJSONValue(data); ok {
			price, currency, found = p, c, true
			return false
		}
		return true
	})
	return price, currency, found
}

func priceFromJSONValue(data interface{}) (decimal.Decimal, string, bool) {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			if p, c, ok := priceFromJSONValue(item); ok {
				return p, c, ok
			}
		}
	case map[string]interface{}:
		if v["@type"] == "Product" {
			if offers, ok := v["offers"]; ok {
				return priceFromOffers(offers)
			}
		}
	}
	return decimal.Decimal{}, "", false
}

func priceFromOffers(offers interface{}) (decimal.Decimal, string, bool) {
	switch o := offers.(type) {
	case map[string]interface{}:
		return priceFromOffer(o)
	case []interface{}:
		for _, item := range o {
			offer, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if p, c, found := priceFromOffer(offer); found {
				return p, c, found
			}
		}
	}
	return decimal.Decimal{}, "", false
}

func priceFromOffer(offer map[string]interface{}) (decimal.Decimal, string, bool) {
	raw := offer["price"]
	if raw == nil {
		raw = offer["lowPrice"]
	}
	if raw == nil {
		return decimal.Decimal{}, "", false
	}
	amount, ok := parseJSONAmount(raw)
	if !ok {
		return decimal.Decimal{}, "", false
	}
	currency := "USD"
	if c, isString := offer["priceCurrency"].(string); isString && c != "" {
		currency = strings.ToUpper(strings.TrimSpace(c))
	}
	return amount, currency, true
}

func parseJSONAmount(value interface{}) (decimal.Decimal, bool) {
	switch n := value.(type) {
	case float64:
		amount := decimal.NewFromFloat(n)
		return amount, amount.IsPositive()
	case string:
		return ParseAmount(n)
	}
	return decimal.Decimal{}, false
}

// scriptPricePatterns match common key/value price emissions in inline
// scripts. First matching pattern wins per script body.
var scriptPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"price"\s*:\s*"?(\d+(?:\.\d+)?)"?`),
	regexp.MustCompile(`"currentPrice"\s*:\s*"?(\d+(?:\.\d+)?)"?`),
	regexp.MustCompile(`"salePrice"\s*:\s*"?(\d+(?:\.\d+)?)"?`),
	regexp.MustCompile(`\bprice\s*:\s*"?(\d+(?:\.\d+)?)"?`),
}

var scriptCurrencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"currency"\s*:\s*"([A-Za-z]{3})"`),
	regexp.MustCompile(`"priceCurrency"\s*:\s*"([A-Za-z]{3})"`),
}

// extractPriceFromScripts scans inline script bodies with regex heuristics.
// The currency is paired from the same script body, defaulting to USD.
func extractPriceFromScripts(doc *goquery.Document) (decimal.Decimal, string, bool) {
	var (
		price    decimal.Decimal
		currency string
		found    bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		if body == "" {
			return true
		}
		for _, pattern := range scriptPricePatterns {
			match := pattern.FindStringSubmatch(body)
			if match == nil {
				continue
			}
			amount, ok := ParseAmount(match[1])
			if !ok {
				continue
			}
			price, found = amount, true
			currency = "USD"
			for _, currencyPattern := range scriptCurrencyPatterns {
				if cm := currencyPattern.FindStringSubmatch(body); cm != nil {
					currency = strings.ToUpper(cm[1])
					break
				}
			}
			return false
		}
		return true
	})
	return price, currency, found
}

// elementMatchers is the ordered list of class/id/attribute heuristics that
// suggest price semantics on an element.
var elementMatchers = []struct {
	name  string
	match func(s *goquery.Selection) bool
}{
	{"class~price", classContains("price")},
	{"class~cost", classContains("cost")},
	{"class~amount", classContains("amount")},
	{"id~price", func(s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return strings.Contains(strings.ToLower(id), "price")
	}},
	{"itemprop=price", func(s *goquery.Selection) bool {
		itemprop, _ := s.Attr("itemprop")
		return itemprop == "price"
	}},
	{"data-price", func(s *goquery.Selection) bool {
		_, ok := s.Attr("data-price")
		return ok
	}},
}

func classContains(substr string) func(s *goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return strings.Contains(strings.ToLower(class), substr)
	}
}

// extractPriceFromSelectors scans elements whose class/id/attributes suggest
// price semantics. A data-price attribute wins over the element's text.
func extractPriceFromSelectors(doc *goquery.Document) (decimal.Decimal, string, bool) {
	for _, matcher := range elementMatchers {
		var (
			price    decimal.Decimal
			currency string
			found    bool
		)
		doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !matcher.match(s) {
				return true
			}
			text := strings.TrimSpace(s.Text())
			if dataPrice, ok := s.Attr("data-price"); ok {
				if amount, parsed := ParseAmount(dataPrice); parsed {
					price, currency, found = amount, DetectCurrency(text), true
					return false
				}
			}
			if amount, c, ok := ParsePrice(text); ok {
				price, currency, found = amount, c, true
				return false
			}
			return true
		})
		if found {
			return price, currency, true
		}
	}
	return decimal.Decimal{}, "", false
}

// extractPriceFromText is the last resort: a free-text regex scan over the
// whole document body.
func extractPriceFromText(doc *goquery.Document) (decimal.Decimal, string, bool) {
	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	return ParsePrice(text)
}

// ExtractName resolves a display name from the best available signal,
// truncated to a bounded length. Independent of the price strategy used.
func ExtractName(doc *goquery.Document) string {
	candidates := []func() string{
		func() string { return metaContent(doc, "meta[property='og:title']") },
		func() string { return metaContent(doc, "meta[name='twitter:title']") },
		func() string {
			var name string
			doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if classContains("product")(s) {
					name = strings.TrimSpace(s.Text())
					return false
				}
				return true
			})
			return name
		},
		func() string { return strings.TrimSpace(doc.Find("h1").First().Text()) },
		func() string { return strings.TrimSpace(doc.Find("title").First().Text()) },
	}
	for _, candidate := range candidates {
		if name := candidate(); name != "" {
			return truncate(name, maxNameLength)
		}
	}
	return ""
}

// ExtractImageURL resolves a product image from the best available signal.
// Relative URLs are resolved against the source page; protocol-relative URLs
// are upgraded to https.
func ExtractImageURL(doc *goquery.Document, sourceURL string) string {
	candidates := []func() string{
		func() string { return metaContent(doc, "meta[property='og:image']") },
		func() string { return metaContent(doc, "meta[name='twitter:image']") },
		func() string { return findImage(doc, classContains("product")) },
		func() string {
			return findImage(doc, func(s *goquery.Selection) bool {
				id, _ := s.Attr("id")
				return strings.Contains(strings.ToLower(id), "product")
			})
		},
		func() string {
			return findImage(doc, func(s *goquery.Selection) bool {
				itemprop, _ := s.Attr("itemprop")
				return itemprop == "image"
			})
		},
	}
	for _, candidate := range candidates {
		raw := candidate()
		if raw == "" {
			continue
		}
		if resolved := resolveImageURL(raw, sourceURL); resolved != "" {
			return resolved
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func findImage(doc *goquery.Document, match func(s *goquery.Selection) bool) string {
	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !match(s) {
			return true
		}
		if v, ok := s.Attr("src"); ok && v != "" {
			src = v
			return false
		}
		if v, ok := s.Attr("data-src"); ok && v != "" {
			src = v
			return false
		}
		return true
	})
	return src
}

func resolveImageURL(raw, sourceURL string) string {
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
