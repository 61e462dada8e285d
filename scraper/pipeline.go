package scraper

import (
	"log"

	"dropwatch/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// priceStrategies is the fixed priority order of the extraction chain. The
// first strategy yielding a positive price wins; there is no merging or
// voting across strategies.
var priceStrategies = []struct {
	name string
	fn   func(doc *goquery.Document) (decimal.Decimal, string, bool)
}{
	{"meta", extractPriceFromMeta},
	{"json-ld", extractPriceFromJSONLD},
	{"script", extractPriceFromScripts},
	{"selector", extractPriceFromSelectors},
	{"text", extractPriceFromText},
}

// Extract runs the strategy chain over a parsed document. Name and image are
// resolved independently of which price strategy succeeded. Returns false
// when no strategy finds a price; that is an expected outcome, not an error.
func Extract(doc *goquery.Document, sourceURL string) (*models.ExtractedPrice, bool) {
	for _, strategy := range priceStrategies {
		price, currency, ok := strategy.fn(doc)
		if !ok {
			continue
		}
		log.Printf("Extracted price %s %s from %s via %s strategy", price, currency, sourceURL, strategy.name)
		return &models.ExtractedPrice{
			Price:    price,
			Currency: currency,
			Name:     ExtractName(doc),
			ImageURL: ExtractImageURL(doc, sourceURL),
		}, true
	}
	return nil, false
}
