package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jirabulk/models"
	"jirabulk/services"
)

var (
	settingsConn   services.Connection
	settingsType   string
	settingsSprint string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "保存済みの設定を扱う",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "設定を表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := app.settings.Get()
		if st.APIToken != "" {
			st.APIToken = "********"
		}
		if jsonOutput {
			return printJSON(st)
		}
		fmt.Println(boldStyle.Render("JIRA"), st.JiraURL, st.Email, accentStyle.Render(st.ProjectKey))
		fmt.Println(boldStyle.Render("既定値"), st.DefaultType, st.DefaultSprintID)
		fmt.Println(mutedStyle.Render(fmt.Sprintf("ユーザー %d 件 / スプリント %d 件", len(st.Users), len(st.Sprints))))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "接続設定と既定値を変更する (指定した項目のみ)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := app.settings.SetConnection(ctx, settingsConn); err != nil {
			return err
		}
		if !cmd.Flags().Changed("default-type") && !cmd.Flags().Changed("default-sprint") {
			return nil
		}

		current := app.settings.Get()
		defaultType := current.DefaultType
		if settingsType != "" {
			defaultType = models.CoerceIssueType(services.NormalizeIssueType(settingsType))
		}
		sprint := current.DefaultSprintID
		if cmd.Flags().Changed("default-sprint") {
			sprint = settingsSprint
		}
		return app.settings.SetDefaults(ctx, defaultType, sprint)
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "設定を初期状態に戻す",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.settings.Reset(cmd.Context())
	},
}

var settingsClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "ユーザー・スプリントのキャッシュを消去する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.settings.ClearCache(cmd.Context())
	},
}

func init() {
	f := settingsSetCmd.Flags()
	f.StringVar(&settingsConn.JiraURL, "jira-url", "", "JIRA URL")
	f.StringVar(&settingsConn.Email, "email", "", "JIRA アカウントのメールアドレス")
	f.StringVar(&settingsConn.APIToken, "api-token", "", "JIRA API トークン")
	f.StringVar(&settingsConn.ProjectKey, "project", "", "プロジェクトキー")
	f.StringVar(&settingsType, "default-type", "", "既定の種類 (Epic / Task)")
	f.StringVar(&settingsSprint, "default-sprint", "", "既定のスプリントID")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd, settingsClearCacheCmd)
}
