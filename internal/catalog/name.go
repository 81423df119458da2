// =============================================================================
// Subscription Flow Audit - Product Name Catalog
// =============================================================================
//
// Product names in the commerce export use a dash-delimited encoding that is
// a contract with the upstream export:
//
//   "Product - Variant"             e.g. "Nude Thong - M"
//   "Subtype - Product - Variant"   e.g. "Quarterly - Black Bralette - S"
//
// This file splits that encoding and maps garment names onto their product
// family (colour + base product), which the audit report groups by.
//
// =============================================================================

package catalog

import (
	"strings"
)

// nameSeparator is the delimiter used by the export between name parts.
const nameSeparator = " - "

// unknownPart replaces an empty product part.
const unknownPart = "Unknown"

// =============================================================================
// NAME ENCODING
// =============================================================================

// Name holds the parts of a dash-delimited line item name.
type Name struct {
	Subtype string
	Product string
	Variant string
}

// ParseName splits a raw line item name.
//
// PARTS:
//   - 1 part:  Product
//   - 2 parts: Product, Variant
//   - 3+:      Subtype, Product (middle parts re-joined), Variant
func ParseName(raw string) Name {
	parts := strings.Split(raw, nameSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var n Name
	switch len(parts) {
	case 1:
		n.Product = parts[0]
	case 2:
		n.Product = parts[0]
		n.Variant = parts[1]
	default:
		n.Subtype = parts[0]
		n.Product = strings.Join(parts[1:len(parts)-1], nameSeparator)
		n.Variant = parts[len(parts)-1]
	}

	if n.Product == "" {
		n.Product = unknownPart
	}
	return n
}

// =============================================================================
// PRODUCT FAMILY
// =============================================================================

// Family is a garment's base product and the colour prefix in front of it.
type Family struct {
	Family string
	Color  string
}

// suffixFamilies are matched in order; the most specific names come first so
// "Mesh Bralette" is never reported as a plain bralette.
var suffixFamilies = []struct {
	suffix string
	family string
}{
	{"All Day Balconette", "All Day Balconette"},
	{"Relief Bra", "Relief Bra"},
	{"3D Precision Bra", "3D Precision Bra"},
	{"Mesh Bralette", "Mesh Bralette"},
	{"Wireless Bralette", "Wireless Bralette"},
}

// ParseFamily maps a product name such as "Black Mesh Bralette" onto its
// family ("Mesh Bralette") and colour ("Black"). Plain bralettes belong to
// the "Support Bralette" family unless the name says "Wireless". Unknown
// names are returned unchanged with an empty colour.
func ParseFamily(product string) Family {
	product = strings.TrimSpace(product)

	for _, sf := range suffixFamilies {
		if strings.HasSuffix(product, sf.suffix) {
			return Family{
				Family: sf.family,
				Color:  strings.TrimSpace(strings.TrimSuffix(product, sf.suffix)),
			}
		}
	}

	if strings.HasSuffix(product, "Bralette") {
		color := strings.TrimSpace(strings.TrimSuffix(product, "Bralette"))
		if strings.Contains(product, "Wireless") {
			return Family{
				Family: "Wireless Bralette",
				Color:  strings.TrimSpace(strings.Replace(color, "Wireless", "", 1)),
			}
		}
		return Family{Family: "Support Bralette", Color: color}
	}

	return Family{Family: product}
}
