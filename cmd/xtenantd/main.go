// xtenantd 是多租户 MongoDB 连接管理的示例服务。
//
// 用法:
//
//	xtenantd [全局选项] <命令>
//
// 命令:
//
//	serve      启动 HTTP、gRPC 与可选的 Kafka 消费
//	check      校验配置文件并打印生效的租户配置
//	version    打印版本
//
// 退出码:
//
//	0: 正常退出（含收到 SIGINT/SIGTERM）
//	1: 运行失败
//	2: 配置错误
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtenancy/pkg/lifecycle/xrun"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xtenantd",
		Usage:   "多租户 MongoDB 连接管理服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml 或 json）",
				Value:   "xtenantd.yaml",
				Sources: cli.EnvVars("XTENANTD_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动服务",
				Action: serveAction,
			},
			{
				Name:   "check",
				Usage:  "校验配置",
				Action: checkAction,
			},
			{
				Name:  "version",
				Usage: "打印版本",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintln(cmd.Root().Writer, cmd.Root().Version)
					return err
				},
			},
		},
		DefaultCommand: "serve",
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(args []string) int {
	err := createApp().Run(context.Background(), args)
	switch {
	case err == nil, errors.Is(err, xrun.ErrSignal):
		return 0
	case errors.Is(err, errConfig):
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
}
