package main

import (
	"github.com/urfave/cli/v2"
)

var utxos = cli.Command{
	Name:   "utxos",
	Usage:  "get a list of all utxos of the wallet",
	Action: utxosAction,
}

func utxosAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := svc.GetUtxos(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, newUtxoViews(resp))
}
