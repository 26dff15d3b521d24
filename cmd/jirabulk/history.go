package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jirabulk/services"
	"jirabulk/utils"
)

var historyEdits bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "作成・更新の履歴を扱う",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "履歴を新しい順に表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyEdits {
			edits := app.history.Edits()
			if jsonOutput {
				return printJSON(edits)
			}
			for _, rec := range edits {
				fmt.Printf("%s  %s  %s %d  %s %d\n",
					mutedStyle.Render(shortID(rec.ID)), rec.UpdatedAt,
					passStyle.Render(iconPass), rec.SuccessCount,
					failStyle.Render(iconFail), rec.FailCount)
			}
			return nil
		}

		creations := app.history.Creations()
		if jsonOutput {
			return printJSON(creations)
		}
		for _, rec := range creations {
			line := fmt.Sprintf("%s  %s  %-8s Epic %d / Task %d  %s %d  %s %d",
				mutedStyle.Render(shortID(rec.ID)), rec.CreatedAt, rec.ProjectKey,
				rec.EpicCount, rec.TaskCount,
				passStyle.Render(iconPass), rec.SuccessCount,
				failStyle.Render(iconFail), rec.FailCount)
			if rec.DryRun {
				line += " " + warnStyle.Render("(dry-run)")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "作成履歴の詳細を表示する (ID の前方一致可)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, ok := app.history.Creation(args[0])
		if !ok {
			return fmt.Errorf("%s: 履歴が見つかりません", args[0])
		}
		if jsonOutput {
			return printJSON(rec)
		}
		renderCreationRecord(os.Stdout, &rec)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <file|->",
	Short: "作成履歴を JSON に書き出す",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := services.ExportJSON(services.TransferRecords, app.history.Creations())
		if err != nil {
			return err
		}
		return writeOutput(args[0], data)
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "作成履歴を JSON から取り込む (現在の履歴は置き換え)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		records, err := services.DecodeRecords(data)
		if err != nil {
			return err
		}
		if err := app.history.ReplaceFromImport(cmd.Context(), records); err != nil {
			return err
		}
		utils.LogInfo("%d 件の履歴を取り込みました", len(records))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "作成・更新の履歴を削除する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.history.Clear(cmd.Context())
	},
}

func init() {
	historyListCmd.Flags().BoolVar(&historyEdits, "edits", false, "更新履歴を表示する")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyExportCmd, historyImportCmd, historyClearCmd)
}
