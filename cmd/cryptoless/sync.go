package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/0xfullStack/Cryptoless/internal/config"
	"github.com/0xfullStack/Cryptoless/internal/syncer"
	"github.com/0xfullStack/Cryptoless/internal/syncstore"
)

var syncCmd = cli.Command{
	Name:      "sync",
	Usage:     "incrementally copy the given collections, or all, into the datadir",
	ArgsUsage: "[networks|coins|holders|stakings|delegators|instructions]...",
	Action:    syncAction,
}

func syncAction(ctx *cli.Context) error {
	collections := make([]syncstore.Collection, 0, ctx.NArg())
	for _, arg := range ctx.Args().Slice() {
		c, err := syncstore.ParseCollection(arg)
		if err != nil {
			return err
		}
		collections = append(collections, c)
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	store, err := syncstore.NewStore(
		filepath.Join(config.GetDatadir(), config.DbLocation), nil,
	)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := syncer.New(client, store).Sync(ctx.Context, collections...)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s: %d updated, watermark %d\n", r.Collection, r.Updated, r.Watermark)
	}
	return nil
}
