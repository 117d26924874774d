package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LeeXN/gosible/pkg/inventory"
	"github.com/LeeXN/gosible/pkg/logger"
)

// 退出码约定：0 全部成功，1 加载/解析失败，2 有主机执行失败
const (
	exitOK          = 0
	exitLoadError   = 1
	exitHostsFailed = 2
)

// errHostsFailed 标记"运行完成但有主机失败"，区别于加载错误
var errHostsFailed = errors.New("one or more hosts failed")

type rootOptions struct {
	inventoryPath string
	verbosity     int
	forks         int
}

// Execute 运行命令树并把错误映射为退出码
func Execute(ctx context.Context) int {
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errHostsFailed) {
			return exitHostsFailed
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitLoadError
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gosible",
		Short:         "Declarative IT automation over SSH",
		Long:          "gosible runs idempotent modules against inventory hosts, ad-hoc or from playbooks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logger.DefaultConfig()
			cfg.Level = logger.LevelFromVerbosity(opts.verbosity)
			logger.Init(cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.inventoryPath, "inventory", "i", "inventory.ini", "path to the inventory file")
	flags.CountVarP(&opts.verbosity, "verbose", "v", "increase output verbosity (-v, -vv)")
	flags.IntVarP(&opts.forks, "forks", "f", 5, "maximum concurrent host executions")

	root.AddCommand(newPlaybookCmd(opts))
	root.AddCommand(newAdhocCmd(opts))
	root.AddCommand(newInventoryCmd(opts))
	return root
}

// loadInventory 加载 inventory 文件，组嵌套环在这里就报出来
func loadInventory(opts *rootOptions) (*inventory.Manager, error) {
	mgr := inventory.NewManager()
	if err := mgr.Load(opts.inventoryPath); err != nil {
		return nil, fmt.Errorf("failed to load inventory %s: %w", opts.inventoryPath, err)
	}
	return mgr, nil
}
