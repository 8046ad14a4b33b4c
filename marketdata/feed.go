// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package marketdata distributes price updates over lfc containers.
//
// A Feed allocates Update records from a bounded TypedPool, publishes
// them on a lock-free Queue, and folds consumed updates into a
// latest-quote Map keyed by symbol:
//
//	dom, _ := hazard.NewDomain(hazard.Options{})
//	f, _ := marketdata.NewFeed(lfc.New(dom), marketdata.Options{})
//
//	dom.Do(func(p *hazard.Participant) {
//		f.Publish(p, marketdata.Tick{Symbol: "BTC", Price: px, Volume: qty})
//		f.Process(p, 0)
//		q, _ := f.Quote(p, "BTC")
//	})
package marketdata

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"code.hybscloud.com/lfc"
	"code.hybscloud.com/lfc/hazard"
	"code.hybscloud.com/lfc/pool"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Field limits.
const (
	MaxSymbolLen = 16
	MaxSourceLen = 32
)

// rawAlign is the alignment of raw payload blocks.
const rawAlign = 8

// ErrInvalidTick is returned by Publish for a malformed tick.
var ErrInvalidTick = errors.New("marketdata: invalid tick")

// Tick is the input to Publish.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Volume decimal.Decimal
	Source string

	// Timestamp defaults to the publish time.
	Timestamp time.Time

	// Raw is the venue payload. It is copied into a pooled block.
	Raw []byte
}

// Update is a published tick. It is owned by the Feed until Next hands it
// out, and must be given back with Release.
type Update struct {
	ID        uuid.UUID
	Symbol    string
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Source    string
	Timestamp time.Time
	CreatedAt time.Time
	Raw       []byte
}

// Options configures a Feed.
type Options struct {
	// MaxUpdates bounds the number of Updates in flight. Defaults to
	// 4096.
	MaxUpdates int
}

// Feed is a market data fan-in point safe for concurrent use by attached
// participants of one domain.
type Feed struct {
	updates *pool.TypedPool[Update]
	raw     *pool.BlockPool
	queue   *lfc.Queue[*Update]
	quotes  *lfc.Map[string, Quote]
	logger  *slog.Logger
	now     func() time.Time
}

// NewFeed builds a feed whose queue, quote map and raw payload pool come
// from b.
func NewFeed(b *lfc.Builder, opts Options) (*Feed, error) {
	if opts.MaxUpdates == 0 {
		opts.MaxUpdates = 4096
	}
	raw, err := b.BuildBlockPool()
	if err != nil {
		return nil, fmt.Errorf("marketdata: raw pool: %w", err)
	}
	queue, err := lfc.BuildQueue[*Update](b)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("marketdata: update queue: %w", err)
	}
	quotes, err := lfc.BuildMap[string, Quote](b)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("marketdata: quote map: %w", err)
	}
	f := &Feed{
		raw:    raw,
		queue:  queue,
		quotes: quotes,
		logger: queue.Domain().Logger(),
		now:    time.Now,
	}
	f.updates, err = pool.NewTypedPool[Update](opts.MaxUpdates,
		pool.WithDestroy(f.dropRaw),
		pool.WithTypedLogger[Update](f.logger))
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("marketdata: update pool: %w", err)
	}
	return f, nil
}

// Publish validates t, copies it into a pooled Update and enqueues it.
// Returns the update id, ErrInvalidTick, or lfc.ErrOutOfCapacity when the
// update pool, raw pool or queue is full.
func (f *Feed) Publish(p *hazard.Participant, t Tick) (uuid.UUID, error) {
	if err := validate(t); err != nil {
		return uuid.Nil, err
	}
	u, err := f.updates.Allocate(func(u *Update) error {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		u.ID = id
		u.Symbol = t.Symbol
		u.Price = t.Price
		u.Volume = t.Volume
		u.Source = t.Source
		u.CreatedAt = f.now()
		u.Timestamp = t.Timestamp
		if u.Timestamp.IsZero() {
			u.Timestamp = u.CreatedAt
		}
		if len(t.Raw) > 0 {
			blk, err := f.raw.Acquire(rawAlign, len(t.Raw))
			if err != nil {
				return err
			}
			u.Raw = blk
			copy(u.Raw, t.Raw)
		}
		return nil
	})
	if err != nil {
		f.logger.Warn("marketdata: publish rejected",
			slog.String("symbol", t.Symbol),
			slog.Any("error", err))
		return uuid.Nil, err
	}
	if err := f.queue.Push(p, u); err != nil {
		f.updates.Deallocate(u)
		return uuid.Nil, err
	}
	return u.ID, nil
}

// Next dequeues the oldest pending update. Returns lfc.ErrWouldBlock when
// none is pending.
func (f *Feed) Next(p *hazard.Participant) (*Update, error) {
	u, ok := f.queue.Pop(p)
	if !ok {
		return nil, lfc.ErrWouldBlock
	}
	return u, nil
}

// Release returns u and its raw payload to the pools.
func (f *Feed) Release(u *Update) {
	f.updates.Deallocate(u)
}

// Process applies and releases up to limit pending updates (all pending
// when limit <= 0) and returns how many it applied.
func (f *Feed) Process(p *hazard.Participant, limit int) (int, error) {
	n := 0
	for limit <= 0 || n < limit {
		u, err := f.Next(p)
		if lfc.IsWouldBlock(err) {
			break
		}
		_, err = f.Apply(p, u)
		f.Release(u)
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Pending reports whether updates may be waiting.
func (f *Feed) Pending() bool {
	return !f.queue.Empty()
}

// InFlight returns the number of Updates allocated and not yet released.
func (f *Feed) InFlight() int {
	return f.updates.Allocated()
}

// LogStatistics logs the queue and quote map counters.
func (f *Feed) LogStatistics() {
	lfc.LogStatistics(f.logger, "marketdata.updates", f.queue.Statistics())
	lfc.LogStatistics(f.logger, "marketdata.quotes", f.quotes.Statistics())
}

// Close releases the pools. Pending updates are dropped; the feed must
// not be used afterwards.
func (f *Feed) Close() {
	f.updates.Close()
	f.raw.Close()
}

func (f *Feed) dropRaw(u *Update) {
	if u.Raw != nil {
		f.raw.Release(u.Raw, len(u.Raw), rawAlign)
	}
}

func validate(t Tick) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	case len(t.Symbol) > MaxSymbolLen:
		return fmt.Errorf("%w: symbol %q longer than %d bytes", ErrInvalidTick, t.Symbol, MaxSymbolLen)
	case len(t.Source) > MaxSourceLen:
		return fmt.Errorf("%w: source longer than %d bytes", ErrInvalidTick, MaxSourceLen)
	case !utf8.ValidString(t.Symbol):
		return fmt.Errorf("%w: symbol is not UTF-8", ErrInvalidTick)
	case t.Price.IsNegative():
		return fmt.Errorf("%w: negative price %s", ErrInvalidTick, t.Price)
	case t.Volume.IsNegative():
		return fmt.Errorf("%w: negative volume %s", ErrInvalidTick, t.Volume)
	}
	return nil
}
