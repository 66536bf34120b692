package sheet

import (
	"context"
	"io"

	"github.com/ikkim/storefront-cart/internal/cart"
)

// ImportResult summarizes what an import wrote.
type ImportResult struct {
	Rows  int
	Items []cart.LineItem
}

// Import reads a cart workbook and stores it under key. With merge set the
// rows are added to the stored cart the way repeated adds merge; otherwise
// they replace it.
func Import(ctx context.Context, storage cart.Storage, key string, r io.Reader, merge bool) (ImportResult, error) {
	rows, err := ReadCart(r)
	if err != nil {
		return ImportResult{}, err
	}

	c := cart.New(cart.WithDefectReporter(cart.LogDefects))
	p := cart.NewPersister(storage, key)
	if merge {
		if err := p.Hydrate(ctx, c); err != nil {
			return ImportResult{}, err
		}
	}
	detach := p.Attach(c)
	defer detach()

	if merge {
		for _, raw := range rows {
			c.AddToCart(raw)
		}
	} else {
		c.Dispatch(cart.Load{Items: rows})
	}

	if err := p.Flush(ctx); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Rows: len(rows), Items: c.Items()}, nil
}
