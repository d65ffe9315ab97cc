package ports

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/rustaceanrob/coinline/pkg/wallet"
)

// ErrSigningDeclined is returned by a Signer when the user, or the device,
// refuses to sign.
var ErrSigningDeclined = errors.New("signing declined")

// Signer is an external key holder, like a hardware device, able to sign the
// inputs of an unsigned tx plan. The returned packet must carry either the
// partial signatures or the final witnesses of every input.
type Signer interface {
	Sign(ctx context.Context, plan *wallet.UnsignedTxPlan) (*psbt.Packet, error)
}
