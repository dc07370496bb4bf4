package entity

import "time"

// Status markers as stored in the worksheet status column.
const (
	StatusActive    = "1"
	StatusFulfilled = "0"
)

// DateLayout is the worksheet date format for order creation dates.
const DateLayout = "02-01-2006"

// Order represents one row of the shared shopping-list worksheet,
// columns A..F in fixed order: id, date, product, amount, status, orderedBy.
type Order struct {
	ID        int64
	Date      time.Time
	Product   string
	Amount    *int64
	Status    string
	OrderedBy string
}

// Active reports whether the order is still open on the list.
func (o Order) Active() bool {
	return o.Status == StatusActive
}

// OrderDraft carries the caller-supplied fields of a new order.
// ID, date and status are assigned by the store at append time.
type OrderDraft struct {
	Product   string
	Amount    *int64
	OrderedBy string
}
