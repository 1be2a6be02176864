package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resvia/resvia/security"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "API key utilities",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API key token without persisting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := security.GenerateAPIKey()
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Printf("prefix: %s\n", security.TokenPrefix(token))
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysGenerateCmd)
	rootCmd.AddCommand(keysCmd)
}
