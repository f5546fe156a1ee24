package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xfullStack/Cryptoless/internal/config"
	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

var (
	symbolFlag = cli.StringFlag{
		Name:     "symbol",
		Usage:    "the symbol of the coin",
		Required: true,
	}
	networkFlag = cli.StringFlag{
		Name:     "network",
		Usage:    "the code of the network",
		Required: true,
	}
	fromFlag = cli.StringFlag{
		Name:     "from",
		Usage:    "the source address",
		Required: true,
	}
	amountFlag = cli.StringFlag{
		Name:     "amount",
		Usage:    "the amount in units of the coin, ie. 0.5",
		Required: true,
	}
	cosignFlag = cli.BoolFlag{
		Name:  "cosign",
		Usage: "co-sign with the configured mnemonic key and send the transactions",
	}
)

var transfer = cli.Command{
	Name:  "transfer",
	Usage: "move an amount of a coin to another address",
	Flags: []cli.Flag{
		&symbolFlag,
		&networkFlag,
		&fromFlag,
		&cli.StringFlag{
			Name:     "to",
			Usage:    "the destination address",
			Required: true,
		},
		&amountFlag,
		&cosignFlag,
	},
	Action: transferAction,
}

var stake = cli.Command{
	Name:   "stake",
	Usage:  "delegate an amount of a coin",
	Flags:  []cli.Flag{&symbolFlag, &networkFlag, &fromFlag, &amountFlag, &cosignFlag},
	Action: stakeAction,
}

var unstake = cli.Command{
	Name:   "unstake",
	Usage:  "undelegate an amount of a coin",
	Flags:  []cli.Flag{&symbolFlag, &networkFlag, &fromFlag, &amountFlag, &cosignFlag},
	Action: unstakeAction,
}

var claim = cli.Command{
	Name:   "claim",
	Usage:  "withdraw the staking rewards",
	Flags:  []cli.Flag{&symbolFlag, &networkFlag, &fromFlag, &cosignFlag},
	Action: claimAction,
}

func transferAction(ctx *cli.Context) error {
	amount, err := parseAmount(ctx)
	if err != nil {
		return err
	}
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.Transfer(
		ctx.Context, ctx.String("symbol"), ctx.String("network"),
		ctx.String("from"), ctx.String("to"), amount,
	)
	if err != nil {
		return err
	}
	return handleTransactions(ctx, client, resp.Transactions())
}

func stakeAction(ctx *cli.Context) error {
	amount, err := parseAmount(ctx)
	if err != nil {
		return err
	}
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.Stake(
		ctx.Context, ctx.String("symbol"), ctx.String("network"),
		ctx.String("from"), amount,
	)
	if err != nil {
		return err
	}
	return handleTransactions(ctx, client, resp.Transactions())
}

func unstakeAction(ctx *cli.Context) error {
	amount, err := parseAmount(ctx)
	if err != nil {
		return err
	}
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.Unstake(
		ctx.Context, ctx.String("symbol"), ctx.String("network"),
		ctx.String("from"), amount,
	)
	if err != nil {
		return err
	}
	return handleTransactions(ctx, client, resp.Transactions())
}

func claimAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.Claim(
		ctx.Context, ctx.String("symbol"), ctx.String("network"), ctx.String("from"),
	)
	if err != nil {
		return err
	}
	return handleTransactions(ctx, client, resp.Transactions())
}

// handleTransactions prints the created transactions, or co-signs and sends
// them if requested.
func handleTransactions(
	ctx *cli.Context, client *cryptoless.Client, txs []cryptoless.Transaction,
) error {
	if !ctx.Bool("cosign") {
		printJSON(txs)
		return nil
	}

	key, err := getCoSigningKey()
	if err != nil {
		return err
	}

	sent := make([]cryptoless.Transaction, 0, len(txs))
	for _, tx := range txs {
		res, err := cosignAndSend(ctx.Context, client, key, tx)
		if err != nil {
			return err
		}
		sent = append(sent, *res)
	}
	printJSON(sent)
	return nil
}

func cosignAndSend(
	ctx context.Context, client *cryptoless.Client, key *btcec.PrivateKey,
	tx cryptoless.Transaction,
) (*cryptoless.Transaction, error) {
	if tx.Status != cryptoless.TxStatusSigning {
		log.Debugf("skipping transaction %s with status %s", tx.ID, tx.Status)
		return &tx, nil
	}

	signatures, err := cryptoless.CoSign(tx, key)
	if err != nil {
		return nil, err
	}
	if _, err := client.SignTransaction(ctx, tx.ID, signatures); err != nil {
		return nil, fmt.Errorf("sign transaction %s: %w", tx.ID, err)
	}
	res, err := client.SendTransaction(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("send transaction %s: %w", tx.ID, err)
	}
	log.Debugf("transaction %s sent", tx.ID)
	return res, nil
}

func getCoSigningKey() (*btcec.PrivateKey, error) {
	mnemonic := config.GetString(config.MnemonicKey)
	if len(mnemonic) <= 0 {
		return nil, errors.New("missing mnemonic, set CRYPTOLESS_MNEMONIC")
	}
	return signer.KeyFromMnemonic(
		mnemonic, "", config.GetString(config.DerivationPathKey),
	)
}

func parseAmount(ctx *cli.Context) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(ctx.String("amount"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %s", err)
	}
	return amount, nil
}
