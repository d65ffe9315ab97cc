package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the master extended public key cannot be
	// parsed or is not a public key.
	ErrInvalidKey = errors.New("invalid master public key")
	// ErrDerivation is returned when a child key cannot be derived, either
	// because the index is out of the non-hardened range or the chain is unknown.
	ErrDerivation = errors.New("derivation error")
	// ErrInsufficientFunds is returned by the coin selector when the utxo set
	// is exhausted before covering target and fees.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvariantViolated signals a broken money-math invariant. It is fatal
	// and must never be recovered by clamping amounts.
	ErrInvariantViolated = errors.New("internal invariant violated")

	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrNullSelection ...
	ErrNullSelection = errors.New("coin selection must not be null")
	// ErrNullChangeRecord ...
	ErrNullChangeRecord = errors.New("change address record must not be null")
	// ErrNullPsbt ...
	ErrNullPsbt = errors.New("psbt must not be null")

	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrInvalidFingerprint ...
	ErrInvalidFingerprint = errors.New(
		"fingerprint must be a 4 byte value in hex format",
	)
	// ErrInvalidTarget ...
	ErrInvalidTarget = errors.New("target amount must be in range (0, 21M BTC]")
	// ErrInvalidFeeRate ...
	ErrInvalidFeeRate = errors.New("fee rate must not be negative")
	// ErrInvalidSelectionPolicy ...
	ErrInvalidSelectionPolicy = errors.New(
		"selection policy must be either 'smallest' or 'largest'",
	)
	// ErrInvalidRecipientAddress ...
	ErrInvalidRecipientAddress = errors.New(
		"recipient must be a valid address for the wallet network",
	)
	// ErrInvalidChangeChain ...
	ErrInvalidChangeChain = fmt.Errorf(
		"change %w: record must belong to the internal chain", ErrDerivation,
	)

	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
	// ErrEmptyInputs ...
	ErrEmptyInputs = errors.New("input list must not be empty")
)
