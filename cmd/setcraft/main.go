package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "setcraft",
		Short: "Asset propagation engine for production hierarchies",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(initCmd())
	root.AddCommand(nodeCmd())
	root.AddCommand(assignCmd())
	root.AddCommand(ruleCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(generateCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
