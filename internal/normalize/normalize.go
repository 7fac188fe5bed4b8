package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// SafeKey derives a store-safe user key from an email address: the address
// is normalized and every "." is replaced with "-" since "." is reserved in
// document paths. Idempotent. The mapping is not injective in general
// ("a-b@x.com" and "a.b@x-com" derive the same key); existing stored data
// depends on this exact mapping so it must not change.
func SafeKey(email string) string {
	return strings.ReplaceAll(Email(email), ".", "-")
}
