package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeeXN/gosible/pkg/runner"
)

func newAdhocCmd(opts *rootOptions) *cobra.Command {
	var (
		moduleName string
		moduleArgs string
	)

	cmd := &cobra.Command{
		Use:   "adhoc <host-pattern>",
		Short: "Run a single module against hosts matching a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := args[0]

			inv, err := loadInventory(opts)
			if err != nil {
				return err
			}

			parsedArgs, err := runner.ParseModuleArgs(moduleArgs)
			if err != nil {
				return err
			}

			adhoc := runner.NewAdhocRunner(inv, opts.forks)
			results := adhoc.Run(cmd.Context(), pattern, moduleName, parsedArgs)

			fmt.Print(runner.FormatResults(results))

			for _, result := range results {
				if result.ModuleResult.Failed || result.ModuleResult.Unreachable {
					return errHostsFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&moduleName, "module", "m", "ping", "module name to execute")
	cmd.Flags().StringVarP(&moduleArgs, "args", "a", "", "module arguments as key=value pairs")
	return cmd
}
