package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeeXN/gosible/cmd/gosible/commands"
)

func main() {
	// SIGINT/SIGTERM 取消上下文，在途的主机执行协作式收尾后退出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(commands.Execute(ctx))
}
