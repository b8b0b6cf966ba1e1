// Package purchase defines the purchasable catalog (tier NFTs and token
// packages) and the order/receipt records that flow through a purchase.
package purchase

import (
	"fmt"
	"time"

	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

// Kind distinguishes what an order buys.
type Kind string

const (
	KindNFT          Kind = "nft"
	KindTokenPackage Kind = "token_package"
)

// TierOffer is a purchasable access tier NFT.
type TierOffer struct {
	Tier     tier.Tier `json:"tier"`
	PriceETH float64   `json:"price_eth"`
	PriceUSD float64   `json:"price_usd"`
	Benefits []string  `json:"benefits"`
}

// Package is a purchasable token bundle.
type Package struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Tokens      int64   `json:"tokens"`
	PriceETH    float64 `json:"price_eth"`
	PriceUSD    float64 `json:"price_usd"`
	DiscountPct int     `json:"discount_pct"`
}

// Order is a resolved purchase intent: catalog item plus the wallet that
// is buying it.
type Order struct {
	ID       string    `json:"id"`
	Wallet   string    `json:"wallet"`
	Kind     Kind      `json:"kind"`
	ItemID   string    `json:"item_id"`
	PriceETH float64   `json:"price_eth"`
	PriceUSD float64   `json:"price_usd"`
	Tokens   int64     `json:"tokens,omitempty"`
	Tier     tier.Tier `json:"tier,omitempty"`
}

// Receipt records a completed purchase.
type Receipt struct {
	ID        string    `json:"id"`
	Wallet    string    `json:"wallet"`
	Kind      Kind      `json:"kind"`
	ItemID    string    `json:"item_id"`
	PriceETH  float64   `json:"price_eth"`
	PriceUSD  float64   `json:"price_usd"`
	Tokens    int64     `json:"tokens,omitempty"`
	Tier      tier.Tier `json:"tier,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var tierOffers = []TierOffer{
	{
		Tier:     tier.Basic,
		PriceETH: 0.01,
		PriceUSD: 25,
		Benefits: []string{"Terraform analysis", "Checkov security scans"},
	},
	{
		Tier:     tier.Pro,
		PriceETH: 0.05,
		PriceUSD: 125,
		Benefits: []string{"Everything in Basic", "Preview analysis", "LLM-powered analysis", "Cost optimization"},
	},
	{
		Tier:     tier.Enterprise,
		PriceETH: 0.2,
		PriceUSD: 500,
		Benefits: []string{"Everything in Pro", "Security audits", "Full infrastructure reviews"},
	},
}

var packages = []Package{
	{ID: "starter", Name: "Starter", Tokens: 100, PriceETH: 0.005, PriceUSD: 10, DiscountPct: 0},
	{ID: "power", Name: "Power", Tokens: 500, PriceETH: 0.0225, PriceUSD: 45, DiscountPct: 10},
	{ID: "pro", Name: "Pro", Tokens: 1000, PriceETH: 0.0425, PriceUSD: 85, DiscountPct: 15},
	{ID: "enterprise", Name: "Enterprise", Tokens: 5000, PriceETH: 0.1875, PriceUSD: 375, DiscountPct: 25},
}

// TierOffers lists purchasable tiers in ascending order.
func TierOffers() []TierOffer {
	out := make([]TierOffer, len(tierOffers))
	copy(out, tierOffers)
	return out
}

// Packages lists token packages in ascending size order.
func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// NewOrder resolves a catalog item into an order for the wallet.
func NewOrder(id, wallet string, kind Kind, itemID string) (Order, error) {
	order := Order{ID: id, Wallet: wallet, Kind: kind, ItemID: itemID}
	switch kind {
	case KindNFT:
		t := tier.Parse(itemID)
		for _, offer := range tierOffers {
			if offer.Tier == t {
				order.Tier = offer.Tier
				order.PriceETH = offer.PriceETH
				order.PriceUSD = offer.PriceUSD
				return order, nil
			}
		}
		return Order{}, fmt.Errorf("unknown tier: %s", itemID)
	case KindTokenPackage:
		for _, pkg := range packages {
			if pkg.ID == itemID {
				order.Tokens = pkg.Tokens
				order.PriceETH = pkg.PriceETH
				order.PriceUSD = pkg.PriceUSD
				return order, nil
			}
		}
		return Order{}, fmt.Errorf("unknown token package: %s", itemID)
	default:
		return Order{}, fmt.Errorf("unknown purchase kind: %s", kind)
	}
}
