// Package pricing computes the authoritative total of a stay.  Totals are
// in centavos and never derived from client input.
package pricing

import (
	"fmt"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
	"github.com/iliyamo/hotel-reservation/internal/model"
)

const (
	// ChildSurchargeCents is charged per child aged ChildSurchargeMinAge
	// to ChildSurchargeMaxAge inclusive.
	ChildSurchargeCents  int64 = 15000
	ChildSurchargeMinAge       = 7
	ChildSurchargeMaxAge       = 13
)

// Quote is the breakdown of a computed price.
type Quote struct {
	BaseCents      int64 `json:"base"`
	SurchargeCents int64 `json:"childSurcharge"`
	TotalCents     int64 `json:"total"`
	ChargedKids    int   `json:"chargedChildren"`
}

// Compute prices a stay of hours on a room with the given rate card.
// Ages 0-6 are free.  A missing rate is a configuration problem, not a
// client error.
func Compute(rates model.RateCard, hours int, childAges []int) (Quote, error) {
	base, ok := rates[hours]
	if !ok {
		return Quote{}, apperr.Configuration(fmt.Sprintf("no rate configured for %dh stays", hours))
	}
	q := Quote{BaseCents: base}
	for _, age := range childAges {
		if age >= ChildSurchargeMinAge && age <= ChildSurchargeMaxAge {
			q.SurchargeCents += ChildSurchargeCents
			q.ChargedKids++
		}
	}
	q.TotalCents = q.BaseCents + q.SurchargeCents
	return q, nil
}

// FormatPHP renders centavos as a peso amount, e.g. 65000 -> "₱650.00".
func FormatPHP(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s₱%d.%02d", sign, cents/100, cents%100)
}
