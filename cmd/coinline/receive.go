package main

import (
	"github.com/urfave/cli/v2"
)

var receive = cli.Command{
	Name:   "receive",
	Usage:  "get the first unused receiving address",
	Action: receiveAction,
}

func receiveAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	record, err := svc.GetFreshAddress(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, newAddressView(record))
}
