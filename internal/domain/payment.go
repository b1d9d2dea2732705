package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a payment relative to the account holder.
type TransactionType string

const (
	TransactionSent     TransactionType = "Sent"
	TransactionReceived TransactionType = "Received"
)

// PaymentTransaction is a point-in-time money movement. Location is nil when it
// could not be resolved from a map link or the location history.
type PaymentTransaction struct {
	ID        int64
	UserID    int64
	Type      TransactionType
	Amount    decimal.Decimal
	Location  *Coordinates
	Timestamp time.Time
}

// ParseTransactionTypes maps the short query filter onto the types it selects:
// "S" is Sent, "R" is Received and anything else selects both.
func ParseTransactionTypes(filter string) []TransactionType {
	switch strings.ToUpper(strings.TrimSpace(filter)) {
	case "S":
		return []TransactionType{TransactionSent}
	case "R":
		return []TransactionType{TransactionReceived}
	default:
		return []TransactionType{TransactionSent, TransactionReceived}
	}
}
