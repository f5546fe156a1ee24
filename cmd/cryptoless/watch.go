package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
)

var watch = cli.Command{
	Name:  "watch",
	Usage: "print the holders and instructions events until interrupted",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "holders",
			Usage: "watch holders only",
		},
		&cli.BoolFlag{
			Name:  "instructions",
			Usage: "watch instructions only",
		},
	},
	Action: watchAction,
}

func watchAction(ctx *cli.Context) error {
	watchHolders := ctx.Bool("holders") || !ctx.Bool("instructions")
	watchInstructions := ctx.Bool("instructions") || !ctx.Bool("holders")

	client, err := getClient(cryptoless.WithAlwaysActive())
	if err != nil {
		return err
	}
	defer client.Disconnect()

	sigctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigctx)

	g.Go(func() error {
		status, unwatch := client.WatchConnectionStatus()
		defer unwatch()
		for {
			select {
			case <-gctx.Done():
				return nil
			case connected := <-status:
				log.Infof("connected: %t", connected)
			}
		}
	})

	if watchHolders {
		stream, err := client.SubscribeHolders(gctx)
		if err != nil {
			return err
		}
		defer stream.Close()
		g.Go(func() error {
			return consume(gctx, func(ctx context.Context) (interface{}, error) {
				return stream.Next(ctx)
			})
		})
	}

	if watchInstructions {
		stream, err := client.SubscribeInstructions(gctx)
		if err != nil {
			return err
		}
		defer stream.Close()
		g.Go(func() error {
			return consume(gctx, func(ctx context.Context) (interface{}, error) {
				return stream.Next(ctx)
			})
		})
	}

	return g.Wait()
}

// consume prints every frame returned by next until ctx is done. Frames that
// cannot be decoded are skipped.
func consume(
	ctx context.Context, next func(context.Context) (interface{}, error),
) error {
	for {
		items, err := next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, apierror.ErrDecode) {
				log.WithError(err).Warn("skipping frame")
				continue
			}
			return err
		}
		printJSON(items)
	}
}
