package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-wishlist-tracker/models"
	"github.com/aluiziolira/go-wishlist-tracker/parser"
)

// Fields produced by the rule set.
const (
	FieldName          = models.ColumnName
	FieldURL           = models.ColumnURL
	FieldReviewCount   = models.ColumnReviewCount
	FieldReviewStars   = models.ColumnReviewStars
	FieldAddedDate     = models.ColumnAddedDate
	FieldAvailability  = "availability"
	FieldPrice         = "price"
	FieldDeliveryPrice = "delivery_price"
	FieldSellersPrice  = "sellers_price"
)

// Rule extracts one field. The source is the selector's text, or its attribute when Attr is
// set, or the node markup when Selector is empty. Pattern, if present, narrows the source to
// its first capture group.
type Rule struct {
	Field    string
	Selector string
	Attr     string
	Pattern  *regexp.Regexp
	Required bool
}

// Apply runs the rule against node and returns the extracted value, empty when absent.
func (r Rule) Apply(node Node) string {
	var source string
	switch {
	case r.Selector == "":
		source = node.Markup()
	case r.Attr != "":
		source = node.Attr(r.Selector, r.Attr)
	default:
		source = node.Text(r.Selector)
	}

	if r.Pattern == nil || source == "" {
		return source
	}
	match := r.Pattern.FindStringSubmatch(source)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// WishlistRules is the rule set for the wishlist page contract.
func WishlistRules() []Rule {
	return []Rule{
		{Field: FieldName, Selector: `a[id*="itemName"]`, Attr: "title", Required: true},
		{Field: FieldURL, Selector: `a[id*="itemName"]`, Attr: "href", Required: true},
		{Field: FieldReviewCount, Pattern: regexp.MustCompile(`review_count[^>]*?aria-label="([^"]*)"`), Required: true},
		{Field: FieldReviewStars, Selector: `[id*="review_stars"]`, Pattern: regexp.MustCompile(`(\d[.,]\d)`), Required: true},
		{Field: FieldAddedDate, Selector: `span[id*="itemAddedDate"]`, Required: true},
		{Field: FieldAvailability, Selector: `span[id*="availability-msg"]`},
		{Field: FieldPrice, Selector: `span[id*="itemPrice"] span`},
		{Field: FieldDeliveryPrice, Selector: `span[id*="itemPrice"] ~ span span`, Pattern: regexp.MustCompile(`R\$\s*([\d.,]+)`)},
		{Field: FieldSellersPrice, Selector: `span[class*="itemUsedAndNewPrice"]`},
	}
}

// Extractor applies a rule set to listing nodes.
type Extractor struct {
	rules  []Rule
	domain string
}

// NewExtractor builds an extractor; relative item links are resolved against domain.
func NewExtractor(domain string, rules []Rule) *Extractor {
	return &Extractor{rules: rules, domain: domain}
}

// Extract builds a RawItem from node. A missing required field yields an *ExtractionError,
// a malformed number a wrapped *parser.NumericParseError.
func (e *Extractor) Extract(node Node) (models.RawItem, error) {
	var item models.RawItem

	values := make(map[string]string, len(e.rules))
	for _, rule := range e.rules {
		value := rule.Apply(node)
		if value == "" && rule.Required {
			return item, &ExtractionError{Field: rule.Field, Name: values[FieldName]}
		}
		values[rule.Field] = value
	}

	// name and url key every downstream stage, whatever the rule set says
	item.Name = values[FieldName]
	if item.Name == "" {
		return item, &ExtractionError{Field: FieldName}
	}
	if values[FieldURL] == "" {
		return item, &ExtractionError{Field: FieldURL, Name: item.Name}
	}
	item.URL = ResolveURL(e.domain, values[FieldURL])
	item.AddedDate = values[FieldAddedDate]

	if text := values[FieldReviewCount]; text != "" {
		count, err := parser.ParseCount(text)
		if err != nil {
			return item, fmt.Errorf("%s %s: %w", item.Name, FieldReviewCount, err)
		}
		item.ReviewCount = count
	}

	if text := values[FieldReviewStars]; text != "" {
		item.ReviewStars = parser.ReviewStars(text)
		if item.ReviewStars == "" {
			return item, &ExtractionError{Field: FieldReviewStars, Name: item.Name}
		}
	}

	if availability := values[FieldAvailability]; availability != "" {
		item.Availability = &availability
	}

	for _, field := range []struct {
		name string
		dst  **float64
	}{
		{FieldPrice, &item.Price},
		{FieldDeliveryPrice, &item.DeliveryPrice},
		{FieldSellersPrice, &item.SellersPrice},
	} {
		text := values[field.name]
		if text == "" {
			continue
		}
		amount, err := parser.ParseDecimal(text)
		if err != nil {
			return item, fmt.Errorf("%s %s: %w", item.Name, field.name, err)
		}
		*field.dst = &amount
	}

	return item, nil
}

// ResolveURL joins a relative path onto the fixed domain prefix. Absolute links are kept.
func ResolveURL(domain, ref string) string {
	ref = strings.TrimSpace(ref)
	if parsed, err := url.Parse(ref); err == nil && parsed.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return strings.TrimSuffix(domain, "/") + ref
}
