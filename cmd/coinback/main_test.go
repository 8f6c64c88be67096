package main

import (
	"flag"
	"path/filepath"
	"testing"

	"coinback/strategies"

	"github.com/urfave/cli/v2"
)

// Listing strategies must not require a database DSN or even a config file.
func TestListStrategiesWithoutDatabaseConfig(t *testing.T) {
	set := flag.NewFlagSet("coinback", flag.ContinueOnError)
	set.String("config", filepath.Join(t.TempDir(), "missing.toml"), "")
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	if err := listStrategies(ctx); err != nil {
		t.Fatalf("listStrategies() error = %v", err)
	}

	found := false
	for _, name := range strategies.Names() {
		if name == "smacross" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing smacross", strategies.Names())
	}
}
