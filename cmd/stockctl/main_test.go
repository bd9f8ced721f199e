package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSkusFrom_KeepsCommasInsideSkus(t *testing.T) {
	app := newApp()
	app.Before, app.After = nil, nil

	var got []string
	for _, cmd := range app.Commands {
		if cmd.Name == "resolve" {
			cmd.Action = func(c *cli.Context) error {
				got = skusFrom(c)
				return nil
			}
		}
	}

	err := app.Run([]string{"stockctl", "--db-url", "postgres://unused", "resolve", "--sku", "SHIRT,RED", "--sku", " MUG-01 ", "--sku", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"SHIRT,RED", "MUG-01"}, got)
}
