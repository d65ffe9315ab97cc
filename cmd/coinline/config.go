package main

import (
	"github.com/rustaceanrob/coinline/config"
	"github.com/urfave/cli/v2"
)

var configCmd = cli.Command{
	Name:   "config",
	Usage:  "print the effective configuration",
	Action: configAction,
}

func configAction(ctx *cli.Context) error {
	return printJSON(ctx, config.AllSettings())
}
