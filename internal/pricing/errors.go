package pricing

import "errors"

var (
	// ErrInvalidDays means the trip length falls outside every tariff band.
	ErrInvalidDays = errors.New("invalid days")

	// ErrNoTariff means no tariff row exists for the scope/plan/band key.
	ErrNoTariff = errors.New("no tariff found")
)
