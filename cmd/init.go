package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ctxpack configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure ctxpack for your documents and writes a .ctxpack.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("Run `ctxpack index` to index %s into %s.\n", cfg.Include, cfg.DataDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
