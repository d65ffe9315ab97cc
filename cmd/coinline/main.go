package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rustaceanrob/coinline/config"
	"github.com/rustaceanrob/coinline/internal/core/application"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	xpubFlag = cli.StringFlag{
		Name:  "xpub",
		Usage: "account extended public key (xpub, ypub, zpub or testnet equivalent)",
	}
	fingerprintFlag = cli.StringFlag{
		Name:  "fingerprint",
		Usage: "hex encoded master key fingerprint of the signing device",
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "the network to use: mainnet, testnet, regtest or signet",
	}
	providerFlag = cli.StringFlag{
		Name:  "provider",
		Usage: "esplora (http/https) or electrum (tcp/ssl) endpoint",
	}
	gapFlag = cli.IntFlag{
		Name:  "gap",
		Usage: "number of consecutive unused addresses after which scanning stops, in range [1, 50]",
	}
	datadirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "directory where config.json is read from and psbt files are written to",
	}
	logLevelFlag = cli.IntFlag{
		Name:  "log-level",
		Usage: "logrus level, from 0 (panic) to 6 (trace)",
	}
	metricsFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "print provider request metrics to stderr on exit",
	}

	flagsToKeys = map[string]string{
		xpubFlag.Name:        config.XpubKey,
		fingerprintFlag.Name: config.FingerprintKey,
		networkFlag.Name:     config.NetworkKey,
		providerFlag.Name:    config.ProviderURLKey,
		gapFlag.Name:         config.GapLimitKey,
		datadirFlag.Name:     config.DatadirKey,
		logLevelFlag.Name:    config.LogLevelKey,
	}

	registry = prometheus.NewRegistry()
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "coinline"
	app.Usage = "watch-only bitcoin wallet for hardware and air-gapped signers"
	app.Flags = []cli.Flag{
		&xpubFlag,
		&fingerprintFlag,
		&networkFlag,
		&providerFlag,
		&gapFlag,
		&datadirFlag,
		&logLevelFlag,
		&metricsFlag,
	}
	app.Before = initConfig
	app.After = dumpMetrics
	app.Commands = append(
		app.Commands,
		&configCmd,
		&balance,
		&receive,
		&change,
		&addresses,
		&history,
		&utxos,
		&dust,
		&fees,
		&send,
		&broadcast,
	)
	return app
}

func initConfig(ctx *cli.Context) error {
	for flag, key := range flagsToKeys {
		if ctx.IsSet(flag) {
			config.Set(key, ctx.Value(flag))
		}
	}
	if err := config.InitConfig(); err != nil {
		return err
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
	return nil
}

func dumpMetrics(ctx *cli.Context) error {
	if !ctx.Bool(metricsFlag.Name) {
		return nil
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	lines := make([]string, 0)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprint(m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				value = fmt.Sprintf(
					"count=%d sum=%f",
					m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum(),
				)
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf(
				"%s{%s} %s", mf.GetName(), strings.Join(labels, ","), value,
			))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(os.Stderr, line)
	}
	return nil
}

// getWalletService builds the wallet service out of the current config. The
// returned cleanup func closes the provider connection.
func getWalletService(requireFingerprint bool) (
	application.WalletService, func(), error,
) {
	master, err := config.GetMasterKey()
	if err != nil {
		return nil, nil, err
	}
	fingerprint, err := config.GetFingerprint()
	if err != nil && (requireFingerprint || !errors.Is(err, config.ErrMissingFingerprint)) {
		return nil, nil, err
	}

	explorerSvc, err := config.GetExplorer(registry)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = explorerSvc.Close() }

	svc, err := application.NewWalletService(application.WalletServiceOpts{
		MasterKey:   master,
		Explorer:    explorerSvc,
		Fingerprint: fingerprint,
		GapLimit:    config.GetGapLimit(),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func printJSON(ctx *cli.Context, resp interface{}) error {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return fmt.Errorf("unable to encode response: %w", err)
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(buf))
	return err
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[coinline] %v\n", err)
	}
	os.Exit(1)
}
