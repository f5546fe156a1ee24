package main

import (
	"github.com/urfave/cli/v2"

	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

var register = cli.Command{
	Name:  "register",
	Usage: "register the owner public key of the identity",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "pubkey",
			Usage: "hex encoded owner public key, defaults to the one of the configured mnemonic",
		},
	},
	Action: registerAction,
}

var deploy = cli.Command{
	Name:  "deploy",
	Usage: "deploy a threshold account on a network",
	Flags: []cli.Flag{
		&networkFlag,
		&publicKeysFlag,
		&cli.IntFlag{
			Name:  "threshold",
			Usage: "number of signatures required to spend",
			Value: 1,
		},
	},
	Action: deployAction,
}

var addtoken = cli.Command{
	Name:  "addtoken",
	Usage: "track a custom token by contract address",
	Flags: []cli.Flag{
		&networkFlag,
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "the contract address of the token",
			Required: true,
		},
	},
	Action: addTokenAction,
}

func registerAction(ctx *cli.Context) error {
	pubkey := ctx.String("pubkey")
	if len(pubkey) <= 0 {
		key, err := getCoSigningKey()
		if err != nil {
			return err
		}
		pubkey = signer.PublicKeyHex(key)
	}

	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.Register(ctx.Context, pubkey)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func deployAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.DeployAccount(
		ctx.Context, ctx.String("network"), splitList(ctx.String("pubkeys")),
		ctx.Int("threshold"),
	)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func addTokenAction(ctx *cli.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	resp, err := client.AddCustomToken(
		ctx.Context, ctx.String("network"), ctx.String("contract"),
	)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}
