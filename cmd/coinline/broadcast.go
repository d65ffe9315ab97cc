package main

import (
	"fmt"
	"os"

	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/urfave/cli/v2"
)

var broadcast = cli.Command{
	Name:  "broadcast",
	Usage: "finalize a signed PSBT and broadcast the resulting transaction",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "psbt",
			Usage:    "path of the signed PSBT file, either base64 or binary",
			Required: true,
		},
	},
	Action: broadcastAction,
}

func broadcastAction(ctx *cli.Context) error {
	raw, err := os.ReadFile(ctx.String("psbt"))
	if err != nil {
		return fmt.Errorf("reading psbt file: %w", err)
	}
	packet, err := wallet.DecodePsbt(raw)
	if err != nil {
		return fmt.Errorf("decoding psbt: %w", err)
	}

	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	txid, err := svc.FinalizeAndBroadcast(ctx.Context, packet)
	if err != nil {
		return err
	}
	return printJSON(ctx, map[string]string{"txid": txid.String()})
}
