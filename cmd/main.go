package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "teachingkg",
		Short: "Teaching Knowledge Graph catalogue and course-composition engine",
		Long: `teachingkg loads a course catalogue from an N-Triples file, answers
catalogue queries and keeps authored courses in a property store.`,
		SilenceUsage: true,
	}
	opts.bind(root)

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newSearchCmd(opts))
	root.AddCommand(newDetailCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "teachingkg "+version)
		},
	})
	return root
}
