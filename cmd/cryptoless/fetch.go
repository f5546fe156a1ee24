package main

import (
	"strings"

	"github.com/urfave/cli/v2"
)

var (
	sinceFlag = cli.Uint64Flag{
		Name:  "since",
		Usage: "only items updated after this unix time",
	}
	publicKeysFlag = cli.StringFlag{
		Name:     "pubkeys",
		Usage:    "comma separated list of hex encoded public keys",
		Required: true,
	}
)

var networks = cli.Command{
	Name:   "networks",
	Usage:  "list the supported networks",
	Flags:  []cli.Flag{&sinceFlag},
	Action: networksAction,
}

var accounts = cli.Command{
	Name:   "accounts",
	Usage:  "list the accounts including any of the given public keys",
	Flags:  []cli.Flag{&publicKeysFlag},
	Action: accountsAction,
}

var transactions = cli.Command{
	Name:  "transactions",
	Usage: "list the transactions with the given status",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "status",
			Usage: "SIGNING or PENDING",
			Value: "SIGNING",
		},
		&cli.IntFlag{
			Name:  "limit",
			Value: 100,
		},
		&cli.IntFlag{
			Name: "offset",
		},
	},
	Action: transactionsAction,
}

var coins = cli.Command{
	Name:   "coins",
	Usage:  "list the supported coins and their networks",
	Flags:  []cli.Flag{&sinceFlag},
	Action: coinsAction,
}

var holders = cli.Command{
	Name:   "holders",
	Usage:  "list the balances of the identity",
	Flags:  []cli.Flag{&sinceFlag},
	Action: holdersAction,
}

var stakings = cli.Command{
	Name:   "stakings",
	Usage:  "list the staking programs",
	Flags:  []cli.Flag{&sinceFlag},
	Action: stakingsAction,
}

var delegators = cli.Command{
	Name:  "delegators",
	Usage: "list the delegations of the identity",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "since",
			Usage: "only delegations updated after this ISO8601 time",
		},
	},
	Action: delegatorsAction,
}

var instructions = cli.Command{
	Name:   "instructions",
	Usage:  "list the instructions of the identity",
	Flags:  []cli.Flag{&sinceFlag},
	Action: instructionsAction,
}

var balances = cli.Command{
	Name:  "balances",
	Usage: "list the balance history of a coin",
	Flags: []cli.Flag{
		&symbolFlag,
		&cli.StringFlag{
			Name:  "address",
			Usage: "restrict the history to this address",
		},
	},
	Action: balancesAction,
}

func networksAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchNetworks(ctx.Context, ctx.Uint64("since"))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func accountsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchAccounts(ctx.Context, splitList(ctx.String("pubkeys")))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func transactionsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchTransactions(
		ctx.Context, ctx.String("status"), ctx.Int("limit"), ctx.Int("offset"),
	)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func coinsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchCoins(ctx.Context, ctx.Uint64("since"))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func holdersAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchHolders(ctx.Context, ctx.Uint64("since"))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func stakingsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchStakings(ctx.Context, ctx.Uint64("since"))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func delegatorsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchDelegators(ctx.Context, ctx.String("since"))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func instructionsAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchInstructions(ctx.Context, ctx.Uint64("since"))
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func balancesAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.FetchBalanceTransactions(
		ctx.Context, ctx.String("symbol"), ctx.String("address"),
	)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func splitList(str string) []string {
	list := make([]string, 0)
	for _, s := range strings.Split(str, ",") {
		if s = strings.TrimSpace(s); len(s) > 0 {
			list = append(list, s)
		}
	}
	return list
}
