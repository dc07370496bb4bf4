package dto

// OrderResponse represents an order as exposed via the HTTP surface.
type OrderResponse struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Product   string `json:"product"`
	Amount    *int64 `json:"amount"`
	Active    bool   `json:"active"`
	OrderedBy string `json:"ordered_by,omitempty"`
}

// IntakeResponse reports the outcome of one audio submission.
// Hypotheses is populated only when State is "manual_choice".
type IntakeResponse struct {
	State      string         `json:"state"`
	Order      *OrderResponse `json:"order,omitempty"`
	Message    string         `json:"message,omitempty"`
	Hypotheses []string       `json:"hypotheses,omitempty"`
}

// OrderEdit is one row of a list-view commit: a check-off and/or an
// amended amount for an existing order.
type OrderEdit struct {
	ID        int64  `json:"id"`
	Fulfilled bool   `json:"fulfilled"`
	Amount    *int64 `json:"amount"`
}

// EditResult reports what happened to a single edit during a commit.
type EditResult struct {
	ID      int64  `json:"id"`
	Updated bool   `json:"updated"`
	Error   string `json:"error,omitempty"`
}
