package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/iotaaxel/limit-order-book/internal/common"
	"github.com/iotaaxel/limit-order-book/internal/utils"
)

var (
	// ErrInvalidOrder rejects a submission with a non-positive price or
	// quantity. The book is left untouched.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrDuplicateOrder rejects a submission whose id is already resting on
	// either side. The book is left untouched.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrCorruptBook reports an internal invariant violation, e.g. a resting
	// order observed with zero quantity. This is a logic bug, not a caller
	// mistake, and must never be silently absorbed.
	ErrCorruptBook = errors.New("order book corrupted")
)

// PriceRule selects which order sets the trade price on a cross.
type PriceRule int

const (
	// PriceRuleMaker prices the trade at the earlier-resting (passive) order.
	PriceRuleMaker PriceRule = iota
	// PriceRuleBuy prices every trade at the buy order's limit. This
	// systematically favours aggressive buyers and exists only for venues
	// that want that convention.
	PriceRuleBuy
)

// ExpiryPolicy maps each time-in-force variant to a resting deadline.
type ExpiryPolicy struct {
	GTC time.Duration // maximum resting duration for good-till-cancel
	IOC time.Duration // threshold after which an unfilled IOC is evicted
}

func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		GTC: 24 * time.Hour,
		IOC: time.Minute,
	}
}

// Deadline returns the instant after which the order is expired. DAY orders
// expire at the session boundary: the end of the UTC day they were submitted
// in.
func (p ExpiryPolicy) Deadline(order *common.Order) time.Time {
	switch order.TimeInForce {
	case common.IOC:
		return order.SubmittedAt.Add(p.IOC)
	case common.DAY:
		y, m, d := order.SubmittedAt.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	default:
		return order.SubmittedAt.Add(p.GTC)
	}
}

// Expired identifies an order evicted by ExpireOrders, for caller-side
// notification.
type Expired struct {
	OrderID string
	Side    common.Side
}

// OrderBook is a single-instrument limit order book holding resting buy and
// sell orders in price-time priority.
//
// The book is a synchronously invoked state machine: no operation blocks,
// matches implicitly, or reads a hidden clock beyond stamping SubmittedAt at
// insertion. It is not safe for concurrent use; callers sharing a book must
// serialize every operation behind a single lock, since matching reads and
// mutates both sides atomically relative to any insert or cancel.
type OrderBook struct {
	bids *sideQueue
	asks *sideQueue

	clock  utils.Clock
	policy ExpiryPolicy
	rule   PriceRule

	// Monotonic insertion counter, breaks priority ties between orders
	// stamped at the same instant.
	seq uint64
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:   newSideQueue(common.Buy),
		asks:   newSideQueue(common.Sell),
		clock:  utils.RealClock{},
		policy: DefaultExpiryPolicy(),
		rule:   PriceRuleMaker,
	}
}

func (book *OrderBook) SetClock(clock utils.Clock) { book.clock = clock }

func (book *OrderBook) SetExpiryPolicy(policy ExpiryPolicy) { book.policy = policy }

func (book *OrderBook) SetPriceRule(rule PriceRule) { book.rule = rule }

// AddOrder validates and inserts an order into its side of the book. The
// order is copied; the book is the sole owner of the resting state. Matching
// is a separate, explicit step so callers can batch inserts.
func (book *OrderBook) AddOrder(order common.Order) error {
	if order.Price <= 0 || order.Quantity == 0 {
		return fmt.Errorf("%w: price=%d quantity=%d", ErrInvalidOrder, order.Price, order.Quantity)
	}
	if book.bids.contains(order.ID) || book.asks.contains(order.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}

	order.SubmittedAt = book.clock.Now()
	book.seq++

	switch order.Side {
	case common.Buy:
		book.bids.insert(&order, book.seq)
	case common.Sell:
		book.asks.insert(&order, book.seq)
	default:
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, order.Side)
	}
	return nil
}

// CancelOrder removes the order with the given id from the given side.
// Cancelling an order that already filled or expired is an expected race and
// reports false rather than failing.
func (book *OrderBook) CancelOrder(id string, side common.Side) bool {
	return book.queue(side).remove(id)
}

// CancelOrderAnySide searches both queues for callers that do not know the
// side. An id rests on at most one side, so at most one removal happens.
func (book *OrderBook) CancelOrderAnySide(id string) bool {
	if book.bids.remove(id) {
		return true
	}
	return book.asks.remove(id)
}

// Match crosses the best bid against the best ask while the bid price is at
// least the ask price, emitting one trade per cross. It runs to quiescence:
// on return either a queue is empty or best bid < best ask strictly.
//
// The trade price follows the configured PriceRule; under the default maker
// rule the earlier-resting order sets the price. Each fill decrements both
// orders by the same quantity and an order leaves its queue exactly when its
// remaining quantity reaches zero.
func (book *OrderBook) Match() ([]common.Trade, error) {
	var trades []common.Trade
	for {
		buy, ok := book.bids.peekBest()
		if !ok {
			break
		}
		sell, ok := book.asks.peekBest()
		if !ok {
			break
		}
		if buy.order.Price < sell.order.Price {
			// No cross. Terminal condition, not an error.
			break
		}
		if buy.order.Quantity == 0 || sell.order.Quantity == 0 {
			return trades, fmt.Errorf("%w: resting order with zero quantity", ErrCorruptBook)
		}

		quantity := min(buy.order.Quantity, sell.order.Quantity)
		price := book.tradePrice(buy, sell)
		buy.order.Quantity -= quantity
		sell.order.Quantity -= quantity

		trades = append(trades, common.Trade{
			BuyOrderID:  buy.order.ID,
			SellOrderID: sell.order.ID,
			Price:       price,
			Quantity:    quantity,
			MatchedAt:   book.clock.Now(),
		})

		if buy.order.Quantity == 0 {
			book.bids.remove(buy.order.ID)
		}
		if sell.order.Quantity == 0 {
			book.asks.remove(sell.order.ID)
		}
	}
	return trades, nil
}

func (book *OrderBook) tradePrice(buy, sell *bookEntry) int64 {
	if book.rule == PriceRuleBuy {
		return buy.order.Price
	}
	// Maker rule: whichever order rested first sets the price. The sequence
	// number settles same-instant submissions.
	if sell.order.SubmittedAt.Before(buy.order.SubmittedAt) ||
		(sell.order.SubmittedAt.Equal(buy.order.SubmittedAt) && sell.seq < buy.seq) {
		return sell.order.Price
	}
	return buy.order.Price
}

// ExpireOrders evicts every resting order whose time-in-force deadline lies
// strictly before now. The caller supplies now explicitly; the engine never
// reads the clock here, which keeps expiry deterministic and lets a scheduler
// drive it on any cadence. Pure filter: no matching, no quantity mutation.
func (book *OrderBook) ExpireOrders(now time.Time) []Expired {
	var expired []Expired
	expired = book.expireSide(book.bids, now, expired)
	expired = book.expireSide(book.asks, now, expired)
	return expired
}

func (book *OrderBook) expireSide(q *sideQueue, now time.Time, out []Expired) []Expired {
	var stale []string
	q.scan(func(order *common.Order) bool {
		if now.After(book.policy.Deadline(order)) {
			stale = append(stale, order.ID)
		}
		return true
	})
	for _, id := range stale {
		if q.remove(id) {
			out = append(out, Expired{OrderID: id, Side: q.side})
		}
	}
	return out
}

// BestBid returns the price and remaining quantity of the highest-priced buy
// order, if any.
func (book *OrderBook) BestBid() (common.Quote, bool) {
	return quoteOf(book.bids)
}

// BestAsk returns the price and remaining quantity of the lowest-priced sell
// order, if any.
func (book *OrderBook) BestAsk() (common.Quote, bool) {
	return quoteOf(book.asks)
}

// BestBidOrder returns a copy of the order at the top of the buy queue.
func (book *OrderBook) BestBidOrder() (common.Order, bool) {
	return copyBest(book.bids)
}

// BestAskOrder returns a copy of the order at the top of the sell queue.
func (book *OrderBook) BestAskOrder() (common.Order, bool) {
	return copyBest(book.asks)
}

// Order returns a copy of a resting order by id, searching both sides.
func (book *OrderBook) Order(id string) (common.Order, bool) {
	if order, ok := book.bids.get(id); ok {
		return *order, true
	}
	if order, ok := book.asks.get(id); ok {
		return *order, true
	}
	return common.Order{}, false
}

// Len reports the number of orders resting on one side.
func (book *OrderBook) Len(side common.Side) int {
	return book.queue(side).len()
}

func (book *OrderBook) queue(side common.Side) *sideQueue {
	if side == common.Buy {
		return book.bids
	}
	return book.asks
}

func quoteOf(q *sideQueue) (common.Quote, bool) {
	entry, ok := q.peekBest()
	if !ok {
		return common.Quote{}, false
	}
	return common.Quote{Price: entry.order.Price, Quantity: entry.order.Quantity}, true
}

func copyBest(q *sideQueue) (common.Order, bool) {
	entry, ok := q.peekBest()
	if !ok {
		return common.Order{}, false
	}
	return *entry.order, true
}
