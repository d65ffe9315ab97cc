package wallet

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

// SelectionPolicy determines the order the greedy coin selector walks the
// utxo set in.
type SelectionPolicy int

const (
	// LargestFirst minimizes the number of inputs.
	LargestFirst SelectionPolicy = iota
	// SmallestFirst consolidates small coins first.
	SmallestFirst
)

// ParseSelectionPolicy ...
func ParseSelectionPolicy(str string) (SelectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "", "largest", "largest-first":
		return LargestFirst, nil
	case "smallest", "smallest-first":
		return SmallestFirst, nil
	default:
		return 0, ErrInvalidSelectionPolicy
	}
}

func (p SelectionPolicy) String() string {
	switch p {
	case LargestFirst:
		return "largest"
	case SmallestFirst:
		return "smallest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// SelectionResult is the outcome of a coin selection. Total of the selected
// coins always equals Target + Fee + Change.
type SelectionResult struct {
	Selected []Utxo
	Target   int64
	Fee      int64
	Change   int64
}

// Total returns the sum of the selected coins.
func (r *SelectionResult) Total() int64 {
	var total int64
	for _, u := range r.Selected {
		total += u.Value
	}
	return total
}

// SelectCoins greedily picks utxos, ordered by policy, until their total
// covers targetAmount plus the fee for the transaction overhead and for
// every picked input. The utxo set is never modified.
func SelectCoins(
	utxos []Utxo,
	targetAmount int64,
	satsPerVbyte decimal.Decimal,
	policy SelectionPolicy,
) (*SelectionResult, error) {
	if targetAmount <= 0 || targetAmount > btcutil.MaxSatoshi {
		return nil, ErrInvalidTarget
	}
	if satsPerVbyte.IsNegative() {
		return nil, ErrInvalidFeeRate
	}
	if policy != LargestFirst && policy != SmallestFirst {
		return nil, ErrInvalidSelectionPolicy
	}

	candidates := sortUtxos(utxos, policy)
	inputFee := InputFee(satsPerVbyte)
	fee := OverheadFee(satsPerVbyte)
	runningTarget := targetAmount + fee

	selected := make([]Utxo, 0)
	totalAmount := int64(0)
	for _, u := range candidates {
		selected = append(selected, u)
		totalAmount += u.Value
		fee += inputFee
		runningTarget += inputFee
		if totalAmount >= runningTarget {
			break
		}
	}

	if totalAmount < runningTarget {
		return nil, fmt.Errorf(
			"%w: %d sats needed, %d available",
			ErrInsufficientFunds, runningTarget, totalAmount,
		)
	}

	result := &SelectionResult{
		Selected: selected,
		Target:   targetAmount,
		Fee:      fee,
		Change:   totalAmount - runningTarget,
	}
	if err := result.checkInvariants(satsPerVbyte); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SelectionResult) checkInvariants(satsPerVbyte decimal.Decimal) error {
	if len(r.Selected) <= 0 {
		return fmt.Errorf("%w: empty selection", ErrInvariantViolated)
	}
	if r.Change < 0 {
		return fmt.Errorf("%w: negative change %d", ErrInvariantViolated, r.Change)
	}
	if expected := EstimateFee(len(r.Selected), satsPerVbyte); r.Fee != expected {
		return fmt.Errorf(
			"%w: fee %d does not match estimation %d",
			ErrInvariantViolated, r.Fee, expected,
		)
	}
	if total := r.Total(); total != r.Target+r.Fee+r.Change {
		return fmt.Errorf(
			"%w: inputs %d != target %d + fee %d + change %d",
			ErrInvariantViolated, total, r.Target, r.Fee, r.Change,
		)
	}
	return nil
}

// sortUtxos returns a sorted copy of the given utxos. Coins with equal value
// are ordered by outpoint so that selection is deterministic.
func sortUtxos(utxos []Utxo, policy SelectionPolicy) []Utxo {
	sorted := make([]Utxo, len(utxos))
	copy(sorted, utxos)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Value != b.Value {
			if policy == SmallestFirst {
				return a.Value < b.Value
			}
			return a.Value > b.Value
		}
		if c := bytes.Compare(a.TxID[:], b.TxID[:]); c != 0 {
			return c < 0
		}
		return a.Vout < b.Vout
	})
	return sorted
}
