package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LeeXN/gosible/pkg/module"
	"github.com/LeeXN/gosible/pkg/playbook"
	"github.com/LeeXN/gosible/pkg/runner"
)

func newPlaybookCmd(opts *rootOptions) *cobra.Command {
	var (
		limit     string
		extraVars []string
	)

	cmd := &cobra.Command{
		Use:   "playbook <playbook.yml>",
		Short: "Run the plays of a playbook against inventory hosts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			inv, err := loadInventory(opts)
			if err != nil {
				return err
			}

			registry := module.DefaultRegistry()
			pb, err := playbook.Load(path, registry)
			if err != nil {
				return err
			}

			extra, err := parseExtraVars(extraVars)
			if err != nil {
				return err
			}

			pbRunner := playbook.NewRunner(inv, opts.forks)
			pbRunner.SetRegistry(registry)
			pbRunner.SetBaseDir(filepath.Dir(path))
			pbRunner.SetLimit(limit)
			pbRunner.SetExtraVars(extra)

			report, err := pbRunner.Run(cmd.Context(), pb)
			if err != nil {
				return err
			}
			if !report.Success() {
				return errHostsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&limit, "limit", "l", "", "further restrict targeted hosts to this pattern")
	cmd.Flags().StringArrayVarP(&extraVars, "extra-vars", "e", nil, "extra variable as key=value (repeatable)")
	return cmd
}

// parseExtraVars 解析 -e key=value 列表，值做标量识别
func parseExtraVars(pairs []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		if !strings.Contains(pair, "=") {
			return nil, fmt.Errorf("invalid extra var %q, expected key=value", pair)
		}
		parsed, err := runner.ParseModuleArgs(pair)
		if err != nil {
			return nil, fmt.Errorf("invalid extra var %q: %w", pair, err)
		}
		for k, v := range parsed {
			vars[k] = v
		}
	}
	return vars, nil
}
