package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"ragchat/internal/config"
)

// ConfigInitAction writes the default configuration to PATH (default ./config.yaml).
func ConfigInitAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
