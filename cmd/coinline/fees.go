package main

import (
	"github.com/urfave/cli/v2"
)

var fees = cli.Command{
	Name:   "fees",
	Usage:  "get the fee rate estimates for 1 to 25 blocks confirmation targets",
	Action: feesAction,
}

func feesAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	estimates, err := svc.GetFeeEstimates(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, newFeeViews(estimates))
}
