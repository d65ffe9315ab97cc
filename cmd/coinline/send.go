package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustaceanrob/coinline/config"
	"github.com/rustaceanrob/coinline/internal/core/application"
	"github.com/rustaceanrob/coinline/pkg/mathutil"
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var send = cli.Command{
	Name:  "send",
	Usage: "prepare an unsigned transaction (PSBT) paying the given address",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "to",
			Usage:    "the address of the recipient",
			Required: true,
		},
		&cli.Int64Flag{
			Name:  "amount",
			Usage: "the amount to send in sats",
		},
		&cli.StringFlag{
			Name:  "amount-btc",
			Usage: "the amount to send in BTC, alternative to --amount",
		},
		&cli.IntFlag{
			Name:  "blocks",
			Usage: "the confirmation target the fee rate is estimated for",
			Value: application.DefaultFeeTargetBlocks,
		},
		&cli.StringFlag{
			Name:  "fee-rate",
			Usage: "the fee rate in sat/vB, overrides --blocks",
		},
		&cli.StringFlag{
			Name:  "policy",
			Usage: "the coin selection policy: largest or smallest first",
			Value: wallet.LargestFirst.String(),
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "the file the base64 PSBT is written to, '-' prints it instead. Defaults to <datadir>/psbt/<id>.psbt",
		},
	},
	Action: sendAction,
}

func sendAction(ctx *cli.Context) error {
	req, err := parseSendRequest(ctx)
	if err != nil {
		return err
	}

	svc, cleanup, err := getWalletService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	plan, err := svc.PrepareSend(ctx.Context, *req)
	if err != nil {
		return err
	}
	b64, err := plan.B64Encode()
	if err != nil {
		return err
	}

	view := newPlanView(plan)
	out := ctx.String("out")
	if out == "-" {
		view.Psbt = b64
		return printJSON(ctx, view)
	}
	if out == "" {
		dir, err := config.GetPsbtDir()
		if err != nil {
			return err
		}
		out = filepath.Join(dir, fmt.Sprintf("%s.psbt", plan.ID))
	}
	if err := os.WriteFile(out, []byte(b64), 0644); err != nil {
		return fmt.Errorf("writing psbt file: %w", err)
	}
	view.PsbtFile = out
	return printJSON(ctx, view)
}

func parseSendRequest(ctx *cli.Context) (*application.SendRequest, error) {
	amount := ctx.Int64("amount")
	if btc := ctx.String("amount-btc"); btc != "" {
		if amount > 0 {
			return nil, &invalidUsageError{ctx, "send"}
		}
		value, err := decimal.NewFromString(btc)
		if err != nil {
			return nil, fmt.Errorf("invalid btc amount: %w", err)
		}
		amount = mathutil.SatsFromBtc(value)
	}
	if amount <= 0 {
		return nil, &invalidUsageError{ctx, "send"}
	}

	policy, err := wallet.ParseSelectionPolicy(ctx.String("policy"))
	if err != nil {
		return nil, err
	}

	var feeRate decimal.Decimal
	if rate := ctx.String("fee-rate"); rate != "" {
		if feeRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("invalid fee rate: %w", err)
		}
		if !feeRate.IsPositive() {
			return nil, wallet.ErrInvalidFeeRate
		}
	}

	return &application.SendRequest{
		Target:          amount,
		Recipient:       ctx.String("to"),
		FeeTargetBlocks: ctx.Int("blocks"),
		SatsPerVbyte:    feeRate,
		Policy:          policy,
	}, nil
}
