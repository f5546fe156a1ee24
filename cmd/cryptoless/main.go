package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xfullStack/Cryptoless/internal/config"
	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.0.1"
	app.Name = "cryptoless CLI"
	app.Usage = "Command line interface for the cryptoless custodial wallet API"
	app.Before = func(*cli.Context) error {
		if err := config.InitConfig(); err != nil {
			return err
		}
		log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
		return nil
	}
	app.Commands = append(
		app.Commands,
		&configCmd,
		&register,
		&networks,
		&deploy,
		&accounts,
		&transactions,
		&coins,
		&holders,
		&stakings,
		&delegators,
		&instructions,
		&balances,
		&addtoken,
		&transfer,
		&stake,
		&unstake,
		&claim,
		&swap,
		&syncCmd,
		&watch,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

// getClient returns a client for the configured identity, signing requests
// with the configured api key.
func getClient(opts ...cryptoless.Option) (*cryptoless.Client, error) {
	token := config.GetString(config.TokenKey)
	if len(token) <= 0 {
		return nil, errors.New("missing identity token, set CRYPTOLESS_TOKEN")
	}
	s, err := signer.NewIdentitySigner(config.GetString(config.APIKeyKey))
	if err != nil {
		return nil, fmt.Errorf("%s, set CRYPTOLESS_API_KEY", err)
	}

	opts = append([]cryptoless.Option{
		cryptoless.WithBaseURL(config.GetString(config.APIURLKey)),
		cryptoless.WithSocketURL(config.GetString(config.SocketURLKey)),
		cryptoless.WithTimeout(config.GetDuration(config.RequestTimeoutKey)),
		cryptoless.WithRateLimit(config.GetInt(config.RateLimitKey)),
	}, opts...)

	return cryptoless.New(token, s, opts...)
}

func printJSON(resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to encode response: ", err)
		return
	}
	fmt.Println(string(buf))
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
		_, _ = fmt.Fprintf(os.Stderr, "[cryptoless] %v\n", err)
	}
	os.Exit(1)
}
