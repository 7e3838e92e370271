package indicator

import "errors"

// Construction and ingestion errors. Warm-up is not an error: an indicator
// that has not yet seen a full period simply reports Ready=false.
var (
	// ErrInvalidPeriod is returned when an indicator is constructed with a
	// period below 1.
	ErrInvalidPeriod = errors.New("indicator: period must be at least 1")

	// ErrInvalidMultiplier is returned when a band multiplier is zero,
	// negative, or not a finite number.
	ErrInvalidMultiplier = errors.New("indicator: multiplier must be a positive finite number")

	// ErrNonFiniteInput is returned by Update when the observed close is
	// NaN or infinite. Such a value would silently corrupt every recursive
	// state downstream, so it is rejected at the point of ingestion.
	ErrNonFiniteInput = errors.New("indicator: non-finite close price")
)
