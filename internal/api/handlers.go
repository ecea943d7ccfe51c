package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripvera/travel-intake/internal/service/intake"
	"github.com/tripvera/travel-intake/internal/service/issuance"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	intake   *intake.Service
	issuance *issuance.Service
}

// NewHandlers creates a new Handlers instance
func NewHandlers(intakeSvc *intake.Service, issuanceSvc *issuance.Service) *Handlers {
	return &Handlers{
		intake:   intakeSvc,
		issuance: issuanceSvc,
	}
}

// Serialization helpers. Monetary amounts leave the API as two-decimal
// strings, dates as YYYY-MM-DD; nil pointers stay null.

func moneyString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
