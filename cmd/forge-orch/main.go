package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "forge-orch",
		Short: "Forge Orchestrator - multi-provider code generation pipeline",
		Long: `Forge Orchestrator drives coding goals through discovery, coding and
verification phases. Each phase fans a prompt out to competing AI providers,
a judge picks the best candidate, and deterministic evaluators gate
progression. Every step lands in an append-only checkpoint trail.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
