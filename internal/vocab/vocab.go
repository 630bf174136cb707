package vocab

import "strings"

// defaultAllowedTypes is the canonical set of standardized restaurant
// categories, based on the "Food and Drink" place types defined by Google
// Maps Places:
// https://developers.google.com/maps/documentation/places/web-service/place-types#food-and-drink
//
// The list is static configuration versioned with the code. Update it here
// when the upstream place types change.
var defaultAllowedTypes = []string{
	"acai shop", "afghani restaurant", "african restaurant", "american restaurant", "asian restaurant",
	"bagel shop", "bakery", "bar", "bar and grill", "barbecue restaurant", "brazilian restaurant",
	"breakfast restaurant", "brunch restaurant", "buffet restaurant", "cafe", "cafeteria", "candy store",
	"cat cafe", "chinese restaurant", "chocolate factory", "chocolate shop", "coffee shop", "confectionery",
	"deli", "dessert restaurant", "dessert shop", "diner", "dog cafe", "donut shop", "fast food restaurant",
	"fine dining restaurant", "food court", "french restaurant", "greek restaurant", "hamburger restaurant",
	"ice cream shop", "indian restaurant", "indonesian restaurant", "italian restaurant", "japanese restaurant",
	"juice shop", "korean restaurant", "lebanese restaurant", "meal delivery", "meal takeaway", "mediterranean restaurant",
	"mexican restaurant", "middle eastern restaurant", "pizza restaurant", "pub", "ramen restaurant", "restaurant",
	"sandwich shop", "seafood restaurant", "spanish restaurant", "steak house", "sushi restaurant", "tea house",
	"thai restaurant", "turkish restaurant", "vegan restaurant", "vegetarian restaurant", "vietnamese restaurant", "wine bar",
}

// DefaultAllowedTypes returns the default ordered list of standardized
// restaurant types. The returned slice is a copy, so callers may modify it
// without affecting other callers.
func DefaultAllowedTypes() []string {
	out := make([]string, len(defaultAllowedTypes))
	copy(out, defaultAllowedTypes)
	return out
}

// NormalizeSet builds a set of values normalized for case- and
// whitespace-insensitive membership checks.
func NormalizeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[Normalize(v)] = struct{}{}
	}
	return set
}

// Normalize lowercases and trims a single vocabulary value.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
