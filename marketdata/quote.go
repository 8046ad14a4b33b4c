// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marketdata

import (
	"time"

	"code.hybscloud.com/lfc/hazard"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is the latest state of one symbol.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Source    string
	Timestamp time.Time

	// LastID is the id of the update that last changed the quote.
	LastID uuid.UUID

	// Updates counts the updates folded into the quote, including those
	// that left the price unchanged.
	Updates int64
}

// Apply folds u into the quote for u.Symbol and reports whether the price
// changed. The first update of a symbol creates its quote. Updates older
// than the quote's timestamp are counted but do not change it.
func (f *Feed) Apply(p *hazard.Participant, u *Update) (bool, error) {
	for {
		var changed bool
		ok := f.quotes.UpdateIf(p, u.Symbol, func(q Quote) Quote {
			changed = false
			q.Updates++
			if u.Timestamp.Before(q.Timestamp) {
				return q
			}
			changed = !q.Price.Equal(u.Price)
			q.Volume = u.Volume
			q.Source = u.Source
			q.Timestamp = u.Timestamp
			if changed {
				q.Price = u.Price
				q.LastID = u.ID
			}
			return q
		})
		if ok {
			return changed, nil
		}
		inserted, err := f.quotes.Insert(p, u.Symbol, Quote{
			Symbol:    u.Symbol,
			Price:     u.Price,
			Volume:    u.Volume,
			Source:    u.Source,
			Timestamp: u.Timestamp,
			LastID:    u.ID,
			Updates:   1,
		})
		if err != nil {
			return false, err
		}
		if inserted {
			return true, nil
		}
		// Lost the race to another first update; fold into its quote.
	}
}

// Quote returns the latest quote for symbol.
func (f *Feed) Quote(p *hazard.Participant, symbol string) (Quote, bool) {
	return f.quotes.Find(p, symbol)
}

// Quotes returns the quotes with lo <= symbol <= hi in symbol order.
func (f *Feed) Quotes(p *hazard.Participant, lo, hi string) []Quote {
	entries := f.quotes.RangeQuery(p, lo, hi)
	out := make([]Quote, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// Delist removes symbol's quote and reports whether it existed.
func (f *Feed) Delist(p *hazard.Participant, symbol string) bool {
	return f.quotes.Erase(p, symbol)
}

// Prune removes every quote last touched before cutoff and returns how
// many it removed.
func (f *Feed) Prune(p *hazard.Participant, cutoff time.Time) int {
	return f.quotes.BulkErase(p, func(_ string, q Quote) bool {
		return q.Timestamp.Before(cutoff)
	})
}
