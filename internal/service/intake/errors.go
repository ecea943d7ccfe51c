package intake

import "errors"

// Sentinel errors for the intake service layer.
var (
	ErrNotFound      = errors.New("case not found")
	ErrDuplicateCase = errors.New("case already ingested")
)
