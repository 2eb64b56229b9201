package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tradecore CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tradecore version %s\n", version)
		fmt.Println("An order lifecycle and position accounting engine")
		fmt.Println("https://github.com/quantfold/tradecore")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
