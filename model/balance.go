package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance holds the available funds of one owner in one currency. An owner's
// full wallet is the set of Balance rows sharing the owner id.
type Balance struct {
	OwnerID   string          `json:"owner_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}
