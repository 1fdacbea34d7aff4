// Package main provides hl7rx, the operator CLI for the HL7 conversion
// pipeline. Codec commands run offline; topic, migration and publish
// commands read the same environment as the services.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/config"
	"github.com/drfirst/go-rxhl7/internal/observability/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hl7rx",
		Short:        "HL7 pharmacy order conversion tool",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "warn", "Log level for diagnostic output")

	root.AddCommand(parseCmd())
	root.AddCommand(encodeCmd())
	root.AddCommand(convertCmd())
	root.AddCommand(instructionsCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(topicsCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(publishCmd())
	return root
}

// readInput returns the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return b, nil
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.New(level, true)
}

// loadConfig loads the service environment for commands that reach
// Postgres or the broker.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load("hl7rx")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func trimTrailingNewlines(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}
