package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jirabulk/models"
	"jirabulk/services"
	"jirabulk/utils"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "既存イシューの summary / description を一括更新する",
}

var (
	editSearch string
	editSprint string
	editSort   string
)

var editImportCmd = &cobra.Command{
	Use:   "import <csv|->",
	Short: "JIRA の CSV エクスポートから編集行を取り込む (現在の行は置き換え)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}

		rows, err := importEditData(data)
		if err != nil {
			return err
		}

		app.edits.ReplaceFromImport(rows)
		if err := app.edits.Save(cmd.Context()); err != nil {
			return err
		}
		utils.LogInfo("%d 件のイシューを取り込みました", len(rows))
		return nil
	},
}

var editListCmd = &cobra.Command{
	Use:   "list",
	Short: "編集行を一覧表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := services.SortRows(app.edits.Filter(editSearch, editSprint), editSort)
		if jsonOutput {
			return printJSON(rows)
		}
		renderEditRows(os.Stdout, rows)
		if sprints := app.edits.SprintOptions(); len(sprints) > 0 {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("スプリント: %v", sprints)))
		}
		return nil
	},
}

var editSetCmd = &cobra.Command{
	Use:   "set <row> <field> <value>",
	Short: "編集行の項目を変更する (summary, description など)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveEditID(args[0])
		if err != nil {
			return err
		}
		if err := app.edits.SetField(id, args[1], args[2]); err != nil {
			return err
		}
		return app.edits.Save(cmd.Context())
	},
}

var editSelectCmd = &cobra.Command{
	Use:   "select [row...]",
	Short: "編集行の選択を切り替える",
	RunE: func(cmd *cobra.Command, args []string) error {
		if selectAll {
			app.edits.ToggleSelectAll()
		}
		for _, arg := range args {
			id, err := resolveEditID(arg)
			if err != nil {
				return err
			}
			if err := app.edits.ToggleSelect(id); err != nil {
				return err
			}
		}
		return app.edits.Save(cmd.Context())
	},
}

var editApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "選択中で変更のある行を JIRA に反映する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := app.requireJira()
		if err != nil {
			return err
		}

		rows := app.edits.ChangedSelected()
		record, err := services.NewEditService(client, app.history).Run(ctx, rows, logProgress)
		if err != nil {
			return err
		}

		// JIRA 側の更新が確定した行だけ original を揃える
		if n := app.edits.PromoteSynced(record); n > 0 {
			if err := app.edits.Save(ctx); err != nil {
				return err
			}
		}

		if jsonOutput {
			return printJSON(record)
		}
		renderEditRecord(os.Stdout, record)
		return nil
	},
}

var editExportCmd = &cobra.Command{
	Use:   "export <file|->",
	Short: "編集行を CSV または JSON に書き出す",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := app.edits.Rows()
		if strings.EqualFold(exportFormat, "json") {
			data, err := services.ExportJSON(services.TransferRows, rows)
			if err != nil {
				return err
			}
			return writeOutput(args[0], data)
		}
		if args[0] != "-" {
			return services.NewCSVProcessor().WriteEditCSV(args[0], rows)
		}
		text, err := services.ExportEditRowsCSV(rows)
		if err != nil {
			return err
		}
		return writeOutput(args[0], []byte(text+"\n"))
	},
}

var editClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "編集行をすべて消去する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app.edits.Clear()
		return app.edits.Save(cmd.Context())
	},
}

func init() {
	editListCmd.Flags().StringVar(&editSearch, "search", "", "要約の部分一致で絞り込む")
	editListCmd.Flags().StringVar(&editSprint, "sprint", "", "スプリントで絞り込む")
	editListCmd.Flags().StringVar(&editSort, "sort", services.SortNone, "並び順 (none, summary, status)")
	editSelectCmd.Flags().BoolVar(&selectAll, "all", false, "すべての行の選択を切り替える")
	editExportCmd.Flags().StringVar(&exportFormat, "format", "", "csv または json (省略時は csv)")

	editCmd.AddCommand(editImportCmd, editListCmd, editSetCmd, editSelectCmd, editApplyCmd, editExportCmd, editClearCmd)
}

func importEditData(data []byte) ([]models.EditRow, error) {
	if looksLikeJSON(data) {
		return services.DecodeEditRows(data)
	}
	return services.ImportEditRows(string(data))
}

// resolveEditID はJIRAキー・ID・IDの前方一致から編集行IDを探します
func resolveEditID(arg string) (string, error) {
	rows := app.edits.Rows()
	for _, r := range rows {
		if r.Key == arg {
			return r.ID, nil
		}
	}
	return matchID(arg, len(rows), func(i int) string { return rows[i].ID })
}
