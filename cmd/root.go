package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagQuery    string
	flagAuctions bool
	flagRefresh  bool
)

var rootCmd = &cobra.Command{
	Use:   "dealradar",
	Short: "TUI marketplace deal and auction browser",
	Long:  "dealradar curates marketplace deals and live auctions into a terminal dashboard, with optional AI ranking of what is actually worth your time.",
	RunE:  runTUI,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "open with a search instead of the curated view")
	rootCmd.Flags().BoolVar(&flagAuctions, "auctions", false, "open the auctions view")
	rootCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "discard the cached pool and refetch before launching")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dealradar %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
