package main

import (
	"github.com/urfave/cli/v2"
)

var dust = cli.Command{
	Name:  "dust",
	Usage: "list the utxos worth less than the given threshold",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "threshold",
			Usage: "the threshold in sats, in range [500, 10000]",
			Value: 1000,
		},
	},
	Action: dustAction,
}

func dustAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := svc.ListDust(ctx.Context, ctx.Int64("threshold"))
	if err != nil {
		return err
	}
	return printJSON(ctx, newUtxoViews(resp))
}
