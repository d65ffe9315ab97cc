package main

import (
	"github.com/urfave/cli/v2"
)

var change = cli.Command{
	Name:   "change",
	Usage:  "get the first unused change address",
	Action: changeAction,
}

func changeAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	record, err := svc.GetFreshChangeAddress(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, newAddressView(record))
}
