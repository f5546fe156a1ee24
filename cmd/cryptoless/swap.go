package main

import (
	"github.com/urfave/cli/v2"

	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
)

var swap = cli.Command{
	Name:  "swap",
	Usage: "swap a coin for another",
	Subcommands: []*cli.Command{
		{
			Name:  "quote",
			Usage: "ask the price of a swap",
			Flags: []cli.Flag{
				&networkFlag,
				&fromFlag,
				&cli.StringFlag{
					Name:     "from_symbol",
					Usage:    "the symbol of the coin to sell",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "to_symbol",
					Usage:    "the symbol of the coin to buy",
					Required: true,
				},
				&amountFlag,
			},
			Action: swapQuoteAction,
		},
		{
			Name:  "order",
			Usage: "accept a quote",
			Flags: []cli.Flag{
				&fromFlag,
				&cli.StringFlag{
					Name:     "quote",
					Usage:    "the id of the quote",
					Required: true,
				},
				&cosignFlag,
			},
			Action: swapOrderAction,
		},
	},
}

func swapQuoteAction(ctx *cli.Context) error {
	amount, err := parseAmount(ctx)
	if err != nil {
		return err
	}
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.QuoteSwap(
		ctx.Context, ctx.String("network"), ctx.String("from"),
		ctx.String("from_symbol"), ctx.String("to_symbol"), amount,
	)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func swapOrderAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.Swap(ctx.Context, ctx.String("quote"), ctx.String("from"))
	if err != nil {
		return err
	}
	if !ctx.Bool("cosign") {
		printJSON(resp)
		return nil
	}

	var txs []cryptoless.Transaction
	if resp.Embedded != nil {
		txs = resp.Embedded.Transactions
	}
	return handleTransactions(ctx, client, txs)
}
