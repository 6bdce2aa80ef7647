package common

import (
	"fmt"
	"time"
)

type Order struct {
	ID          string      // Externally assigned identifier, unique per resting order
	Side        Side        // Order side
	Price       int64       // Limit price in integer ticks, strictly positive
	Quantity    uint64      // Remaining quantity, decreases only via matching
	TimeInForce TimeInForce // Resting policy
	SubmittedAt time.Time   // Stamped at insertion, immutable afterwards
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:          %s
Side:        %v
Price:       %d
Quantity:    %d
TimeInForce: %v
SubmittedAt: %v`,
		order.ID,
		order.Side,
		order.Price,
		order.Quantity,
		order.TimeInForce,
		order.SubmittedAt.Format(time.RFC3339Nano),
	)
}
