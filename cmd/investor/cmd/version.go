package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the investor CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("investor version %s\n", version)
		fmt.Println("An automated trading account with paper and live execution")
		fmt.Println("https://github.com/rustyeddy/investor")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
