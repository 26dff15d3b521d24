package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jirabulk/api"
	"jirabulk/server"
	"jirabulk/utils"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "ブラウザ向けの JIRA プロキシを起動する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			app.cfg.ServerAddr = serveAddr
		}
		if app.jira == nil {
			utils.LogWarn("JIRA接続が未設定です。作成・更新のリクエストはエラーになります")
		}
		return server.New(app.cfg, api.NewJiraClient(app.cfg)).Run(cmd.Context())
	},
}

var authCheckCmd = &cobra.Command{
	Use:   "auth-check",
	Short: "JIRA の認証情報を確認する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := app.requireJira()
		if err != nil {
			return err
		}

		utils.LogInfo("JIRA認証をチェックしています... (%s)", client.BaseURL())
		me, err := client.CheckAuth(cmd.Context())
		if err != nil {
			return fmt.Errorf("JIRA認証エラー: %w", err)
		}
		fmt.Println(passStyle.Render(iconPass), "JIRA認証成功:", boldStyle.Render(me.DisplayName), mutedStyle.Render(me.AccountID))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "待ち受けアドレス (例: :5174)")
}
