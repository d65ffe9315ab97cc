package main

import (
	"github.com/urfave/cli/v2"
)

var history = cli.Command{
	Name:   "history",
	Usage:  "list the received and sent transactions, most recent first",
	Action: historyAction,
}

func historyAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := svc.GetHistory(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(ctx, newHistoryViews(entries))
}
