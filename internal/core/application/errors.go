package application

import "errors"

var (
	// ErrNullMasterKey ...
	ErrNullMasterKey = errors.New("master key must not be null")
	// ErrNullExplorer ...
	ErrNullExplorer = errors.New("explorer service must not be null")
	// ErrNullSigner ...
	ErrNullSigner = errors.New("signer must not be null")
	// ErrNullPlan ...
	ErrNullPlan = errors.New("unsigned tx plan must not be null")
	// ErrInvalidGapLimit ...
	ErrInvalidGapLimit = errors.New("gap limit must be in range [1, 50]")
	// ErrInvalidDustThreshold ...
	ErrInvalidDustThreshold = errors.New("dust threshold must be in range [500, 10000] sats")
	// ErrInvalidAddressCount ...
	ErrInvalidAddressCount = errors.New("address count must be in range [1, 1000]")
	// ErrFinalize is returned when a signed psbt cannot be turned into a
	// network ready tx, usually because some input is not signed.
	ErrFinalize = errors.New("failed to finalize psbt")
	// ErrBroadcast is returned when the explorer does not accept a signed
	// tx. It wraps the underlying explorer error.
	ErrBroadcast = errors.New("failed to broadcast transaction")
)
