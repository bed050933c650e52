package domain

import (
	"regexp"
	"strings"
)

// ShopDomainSuffix is the only host suffix accepted for a shop identifier
const ShopDomainSuffix = ".myshopify.com"

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*\.myshopify\.com$`)

// NormalizeShopDomain trims whitespace and lower-cases a shop domain
func NormalizeShopDomain(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}

// ValidateShopDomain checks that shop is a fully-qualified *.myshopify.com domain.
// It must pass before the shop is used in any outbound call.
func ValidateShopDomain(shop string) error {
	if shop == "" {
		return NewAuthError("Missing shop parameter", nil)
	}
	if !shopDomainPattern.MatchString(NormalizeShopDomain(shop)) {
		return NewAuthError("Invalid shop parameter", nil)
	}
	return nil
}

// IsValidShopDomain reports whether shop passes ValidateShopDomain
func IsValidShopDomain(shop string) bool {
	return ValidateShopDomain(shop) == nil
}
