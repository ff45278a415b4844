package models

import "fmt"

// ListKind selects which of a user's two lists a cart line lives in.
type ListKind string

const (
	ListCart     ListKind = "cart"
	ListWishlist ListKind = "wishlist"
)

func ParseListKind(s string) (ListKind, error) {
	switch ListKind(s) {
	case ListCart, ListWishlist:
		return ListKind(s), nil
	default:
		return "", fmt.Errorf("unknown list kind %q", s)
	}
}

// ItemKind identifies which catalog table a cart line or manifest entry points at.
type ItemKind string

const (
	ItemPreset ItemKind = "preset"
	ItemPack   ItemKind = "pack"
)

func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case ItemPreset, ItemPack:
		return ItemKind(s), nil
	default:
		return "", fmt.Errorf("unknown item kind %q", s)
	}
}

// PriceOwnerKind scopes a price history row to a catalog item or a cart line.
type PriceOwnerKind string

const (
	PriceOwnerPreset   PriceOwnerKind = "preset"
	PriceOwnerPack     PriceOwnerKind = "pack"
	PriceOwnerCartItem PriceOwnerKind = "cart_item"
)

func PriceOwnerForItem(kind ItemKind) PriceOwnerKind {
	if kind == ItemPack {
		return PriceOwnerPack
	}
	return PriceOwnerPreset
}
