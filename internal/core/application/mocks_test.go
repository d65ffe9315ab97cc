package application_test

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/stretchr/testify/mock"
)

// **** Signer ****

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) Sign(
	ctx context.Context, plan *wallet.UnsignedTxPlan,
) (*psbt.Packet, error) {
	args := m.Called(ctx, plan)

	var res *psbt.Packet
	if a := args.Get(0); a != nil {
		res = a.(*psbt.Packet)
	}
	return res, args.Error(1)
}
