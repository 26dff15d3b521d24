package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jirabulk/models"
	"jirabulk/services"
	"jirabulk/utils"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "担当者ディレクトリを扱う",
}

var usersImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "JSON または「表示名<TAB>accountId」の一覧からユーザーを追加する",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}

		var incoming []models.JiraUser
		if looksLikeJSON(data) {
			if incoming, err = services.DecodeUsers(data); err != nil {
				return err
			}
		} else {
			incoming = services.ParseUsersGrid(string(data))
		}
		return mergeUsers(cmd, incoming)
	},
}

var usersSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "プロジェクトに割り当て可能なユーザーを JIRA から取得する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := app.requireJira()
		if err != nil {
			return err
		}
		incoming, err := client.FetchAssignableUsers(cmd.Context(), app.cfg.JiraProjectKey)
		if err != nil {
			return err
		}
		return mergeUsers(cmd, incoming)
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "ユーザー一覧を表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users := app.settings.Users()
		if jsonOutput {
			return printJSON(users)
		}
		for _, u := range users {
			fmt.Printf("%-24s %s %s\n", u.DisplayName, accentStyle.Render(u.AccountID), mutedStyle.Render(u.EmailAddress))
		}
		return nil
	},
}

var usersExportCmd = &cobra.Command{
	Use:   "export <file|->",
	Short: "ユーザー一覧を JSON に書き出す",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := services.ExportJSON(services.TransferUsers, app.settings.Users())
		if err != nil {
			return err
		}
		return writeOutput(args[0], data)
	},
}

func init() {
	usersCmd.AddCommand(usersImportCmd, usersSyncCmd, usersListCmd, usersExportCmd)
}

func mergeUsers(cmd *cobra.Command, incoming []models.JiraUser) error {
	merged, added, duplicates := services.MergeUsers(app.settings.Users(), incoming)
	if err := app.settings.SetCache(cmd.Context(), merged, nil); err != nil {
		return err
	}
	utils.LogInfo("ユーザーを %d 件追加しました (重複 %d 件)", added, duplicates)
	return nil
}
