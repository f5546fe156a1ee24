package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/0xfullStack/Cryptoless/internal/config"
)

var configCmd = cli.Command{
	Name:   "config",
	Usage:  "Print the effective configuration of the cryptoless CLI",
	Action: configAction,
}

func configAction(*cli.Context) error {
	settings := config.AllSettings()

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("%s: %v\n", key, settings[key])
	}
	return nil
}
