package common

import (
	"fmt"
	"time"
)

// Trade records a single cross between a resting buy and sell order.
type Trade struct {
	BuyOrderID  string
	SellOrderID string
	Price       int64
	Quantity    uint64
	MatchedAt   time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"trade %d@%d buy=%s sell=%s at %v",
		t.Quantity,
		t.Price,
		t.BuyOrderID,
		t.SellOrderID,
		t.MatchedAt.Format(time.RFC3339Nano),
	)
}

// Quote is a depth-of-one view of one side of the book.
type Quote struct {
	Price    int64
	Quantity uint64
}
