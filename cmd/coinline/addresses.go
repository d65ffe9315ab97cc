package main

import (
	"github.com/rustaceanrob/coinline/pkg/wallet"
	"github.com/urfave/cli/v2"
)

var addresses = cli.Command{
	Name:  "addresses",
	Usage: "derive the first addresses of the wallet without querying the provider",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "count",
			Usage: "the number of addresses to derive",
			Value: 10,
		},
		&cli.BoolFlag{
			Name:  "change",
			Usage: "derive change addresses instead of receiving ones",
		},
	},
	Action: addressesAction,
}

func addressesAction(ctx *cli.Context) error {
	svc, cleanup, err := getWalletService(false)
	if err != nil {
		return err
	}
	defer cleanup()

	chain := wallet.External
	if ctx.Bool("change") {
		chain = wallet.Internal
	}

	records, err := svc.ListAddresses(ctx.Context, chain, uint32(ctx.Uint("count")))
	if err != nil {
		return err
	}
	views := make([]addressView, 0, len(records))
	for _, r := range records {
		views = append(views, newAddressView(r))
	}
	return printJSON(ctx, views)
}
