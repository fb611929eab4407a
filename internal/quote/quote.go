// Package quote provides live market prices used to mark open paper
// positions to market. Only the best bid of an instrument's order book is
// consumed: it is what a long position could be sold for right now.
package quote

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoBids is returned when the order book has no standing bids.
	ErrNoBids = errors.New("quote: order book has no bids")

	// ErrUnknownAsset is returned by StaticSource for assets it has no price for.
	ErrUnknownAsset = errors.New("quote: unknown asset")
)

// Source returns the current best bid for an instrument.
type Source interface {
	BestBid(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Level is a single price+size entry in an order book.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Book is an order book snapshot as returned by the CLOB /book endpoint.
type Book struct {
	Market  string  `json:"market"`
	AssetID string  `json:"asset_id"`
	Bids    []Level `json:"bids"`
	Asks    []Level `json:"asks"`
	Hash    string  `json:"hash"`
}

// BestBid returns the highest bid price in the book. The venue's sort order
// is not relied upon.
func (b *Book) BestBid() (decimal.Decimal, error) {
	if len(b.Bids) == 0 {
		return decimal.Zero, ErrNoBids
	}
	best := b.Bids[0].Price
	for _, lvl := range b.Bids[1:] {
		if lvl.Price.GreaterThan(best) {
			best = lvl.Price
		}
	}
	return best, nil
}

// StaticSource serves fixed prices. Assets listed in Errors fail with the
// given error; assets missing from both maps fail with ErrUnknownAsset.
type StaticSource struct {
	Prices map[string]decimal.Decimal
	Errors map[string]error
}

func (s StaticSource) BestBid(_ context.Context, asset string) (decimal.Decimal, error) {
	if err, ok := s.Errors[asset]; ok {
		return decimal.Zero, err
	}
	if p, ok := s.Prices[asset]; ok {
		return p, nil
	}
	return decimal.Zero, ErrUnknownAsset
}
