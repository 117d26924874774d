package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInventoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Show resolved groups and hosts from the inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := loadInventory(opts)
			if err != nil {
				return err
			}

			groups := inv.GroupsMap()
			for _, groupName := range inv.GroupNames() {
				fmt.Printf("[%s]\n", groupName)
				for _, hostName := range groups[groupName] {
					fmt.Printf("  %s\n", hostName)

					// -v 附带每台主机的合并变量
					if opts.verbosity > 0 {
						host, err := inv.GetHost(hostName)
						if err != nil {
							continue
						}
						data, err := yaml.Marshal(host.Vars)
						if err != nil {
							continue
						}
						printIndented(string(data))
					}
				}
			}
			return nil
		},
	}
	return cmd
}

func printIndented(block string) {
	for _, line := range splitNonEmptyLines(block) {
		fmt.Printf("    %s\n", line)
	}
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
