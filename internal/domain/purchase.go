package domain

import "time"

// Purchase is the append-only audit record of one applied payment event.
// ProviderRef is unique and detects duplicate delivery of the same event.
type Purchase struct {
	ID             string
	UserID         string
	ProductType    ProductType
	AmountPaid     int64
	CreditsGranted int64
	ProviderRef    string
	CreatedAt      time.Time
}
