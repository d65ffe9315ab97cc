package main

import (
	"github.com/urfave/cli/v2"
)

var balance = cli.Command{
	Name:   "balance",
	Usage:  "get the confirmed and unconfirmed balance of the wallet",
	Action: balanceAction,
}

func balanceAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := svc.GetBalance(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, newBalanceView(resp))
}
