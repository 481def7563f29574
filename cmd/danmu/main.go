package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wsx864321/danmu/internal/danmu/pkg/config"
	"github.com/wsx864321/danmu/internal/danmu/server"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "danmu",
		Short:        "Danmu Collector",
		Long:         "Danmu Collector - 订阅虎牙/斗鱼直播间并采集弹幕",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 配置文件必须存在，viper 读取失败会直接 panic
			if _, err := os.Stat(configPath); err != nil {
				return fmt.Errorf("配置文件不可用: %w", err)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			server.Run(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (required)")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "校验配置并列出订阅的直播间",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Init(configPath)
			channels, err := config.GetChannels()
			if err != nil {
				return err
			}
			for _, ch := range channels {
				fmt.Fprintln(cmd.OutOrStdout(), ch.String())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d channels, sink=%s\n", len(channels), config.GetSinkType())
			return nil
		},
	})
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
