package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jirabulk/models"
	"jirabulk/services"
	"jirabulk/utils"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "作成待ちの行を編集する",
}

var (
	draftRow     models.TicketRow
	draftType    string
	draftAfter   int
	pasteRow     int
	pasteField   string
	exportFormat string
	subtaskTypes []string
	selectAll    bool
)

var draftAddCmd = &cobra.Command{
	Use:   "add",
	Short: "行を追加する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := app.settings.Get()
		row := draftRow
		row.Selected = true
		row.Type = settings.DefaultType
		if draftType != "" {
			row.Type = models.IssueType(services.NormalizeIssueType(draftType))
		}
		if row.Sprint == "" {
			row.Sprint = settings.DefaultSprintID
		}
		for _, d := range []*string{&row.StartDate, &row.DueDate} {
			v, ok := utils.NormalizeDate(*d)
			if !ok {
				return fmt.Errorf("日付が不正です: %s", *d)
			}
			*d = v
		}

		id := app.tickets.AddRow(draftAfter, row)
		if err := app.tickets.Save(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(passStyle.Render(iconPass), "行を追加しました", mutedStyle.Render(id))
		return nil
	},
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "行を一覧表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := app.tickets.Rows()
		if jsonOutput {
			return printJSON(rows)
		}
		renderTicketRows(os.Stdout, rows)
		if broken := app.tickets.ValidateParentLinks(); len(broken) > 0 {
			fmt.Println(warnStyle.Render(fmt.Sprintf("親 Epic が見つからない行が %d 件あります", len(broken))))
		}
		return nil
	},
}

var draftImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "JSON または CSV から行を取り込む (現在の行は置き換え)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}

		var rows []models.TicketRow
		if looksLikeJSON(data) {
			rows, err = services.DecodeRows(data)
		} else {
			rows, err = services.ImportTicketRows(string(data))
		}
		if err != nil {
			return err
		}

		app.tickets.ReplaceFromImport(rows)
		if err := app.tickets.Save(cmd.Context()); err != nil {
			return err
		}
		utils.LogInfo("%d 行を取り込みました", len(rows))
		return nil
	},
}

var draftExportCmd = &cobra.Command{
	Use:   "export <file|->",
	Short: "行を JSON または CSV に書き出す",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := app.tickets.Rows()
		if exportFormatFor(args[0]) == "csv" {
			text, err := services.ExportTicketRowsCSV(rows)
			if err != nil {
				return err
			}
			return writeOutput(args[0], []byte(text+"\n"))
		}
		data, err := services.ExportJSON(services.TransferRows, rows)
		if err != nil {
			return err
		}
		return writeOutput(args[0], data)
	},
}

var draftPasteCmd = &cobra.Command{
	Use:   "paste <file|->",
	Short: "タブ区切りのテキストを指定位置から貼り付ける",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		n, err := app.tickets.Paste(pasteRow, pasteField, string(data))
		if err != nil {
			return err
		}
		if err := app.tickets.Save(cmd.Context()); err != nil {
			return err
		}
		utils.LogInfo("%d 行に貼り付けました", n)
		return nil
	},
}

var draftSubtasksCmd = &cobra.Command{
	Use:   "subtasks <row>",
	Short: "行の直後に種類ごとの子 Task を追加する",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveTicketID(args[0])
		if err != nil {
			return err
		}
		types := subtaskTypes
		if len(types) == 0 {
			types = app.settings.Get().LastSubtaskTypes
		}
		if len(types) == 0 {
			return fmt.Errorf("--types を指定してください (%s)", strings.Join(services.SubtaskTypes, ", "))
		}

		ids, err := app.tickets.AddSubtasks(id, types)
		if err != nil {
			return err
		}
		if err := app.settings.UpdateLastSubtaskTypes(cmd.Context(), types); err != nil {
			return err
		}
		if err := app.tickets.Save(cmd.Context()); err != nil {
			return err
		}
		utils.LogInfo("子 Task を %d 件追加しました", len(ids))
		return nil
	},
}

var draftSetCmd = &cobra.Command{
	Use:   "set <row> <field> <value>",
	Short: "行の項目を変更する (" + strings.Join(services.PasteFields, ", ") + ", parentRowId)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveTicketID(args[0])
		if err != nil {
			return err
		}
		if err := app.tickets.SetField(id, args[1], args[2]); err != nil {
			return err
		}
		return app.tickets.Save(cmd.Context())
	},
}

var draftCopyCmd = &cobra.Command{
	Use:   "copy <row>",
	Short: "行を複製して直後に挿入する",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveTicketID(args[0])
		if err != nil {
			return err
		}
		newID, err := app.tickets.CopyRow(id)
		if err != nil {
			return err
		}
		fmt.Println(passStyle.Render(iconPass), "行を複製しました", mutedStyle.Render(newID))
		return app.tickets.Save(cmd.Context())
	},
}

var draftSelectCmd = &cobra.Command{
	Use:   "select [row...]",
	Short: "行の選択を切り替える",
	RunE: func(cmd *cobra.Command, args []string) error {
		if selectAll {
			app.tickets.ToggleSelectAll()
		}
		for _, arg := range args {
			id, err := resolveTicketID(arg)
			if err != nil {
				return err
			}
			if err := app.tickets.ToggleSelect(id); err != nil {
				return err
			}
		}
		return app.tickets.Save(cmd.Context())
	},
}

var draftDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "選択中の行を削除する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n := app.tickets.DeleteSelected()
		utils.LogInfo("%d 行を削除しました", n)
		return app.tickets.Save(cmd.Context())
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "すべての行を消去する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app.tickets.Clear()
		return app.tickets.Save(cmd.Context())
	},
}

var draftSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "現在の行をプロジェクトごとのスナップショットに保存する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := app.history.SaveSnapshot(cmd.Context(), app.cfg.JiraProjectKey, "draft", app.tickets.Rows())
		if err != nil {
			return err
		}
		fmt.Println(passStyle.Render(iconPass), "保存しました", mutedStyle.Render(key))
		return nil
	},
}

var draftRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "スナップショットから行を復元する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, found, err := app.history.LoadSnapshot(cmd.Context(), app.cfg.JiraProjectKey, "draft")
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("スナップショットがありません")
		}
		rows, err := services.DecodeRows(snap.Payload)
		if err != nil {
			return err
		}
		app.tickets.ReplaceFromImport(rows)
		utils.LogInfo("%s のスナップショットから %d 行を復元しました", snap.SavedAt, len(rows))
		return app.tickets.Save(cmd.Context())
	},
}

func init() {
	f := draftAddCmd.Flags()
	f.StringVar(&draftType, "type", "", "種類 (Epic / Task)")
	f.StringVar(&draftRow.Summary, "summary", "", "要約")
	f.StringVar(&draftRow.Description, "description", "", "説明")
	f.StringVar(&draftRow.Assignee, "assignee", "", "担当者 (accountId・表示名・メール)")
	f.StringVar(&draftRow.Sprint, "sprint", "", "スプリントID")
	f.StringVar(&draftRow.StartDate, "start", "", "開始日 (YYYY-MM-DD または YYYYMMDD)")
	f.StringVar(&draftRow.DueDate, "due", "", "期限 (YYYY-MM-DD または YYYYMMDD)")
	f.StringVar(&draftRow.ParentKey, "parent", "", "親 Epic のキー")
	f.IntVar(&draftAfter, "after", -1, "この位置の行の直後に挿入する (-1 は末尾)")

	draftExportCmd.Flags().StringVar(&exportFormat, "format", "", "json または csv (省略時は拡張子で判定)")
	draftPasteCmd.Flags().IntVar(&pasteRow, "row", 0, "貼り付け開始行")
	draftPasteCmd.Flags().StringVar(&pasteField, "field", services.FieldType, "貼り付け開始列")
	draftSubtasksCmd.Flags().StringSliceVar(&subtaskTypes, "types", nil, "子 Task の種類 (カンマ区切り)")
	draftSelectCmd.Flags().BoolVar(&selectAll, "all", false, "すべての行の選択を切り替える")

	draftCmd.AddCommand(draftAddCmd, draftListCmd, draftImportCmd, draftExportCmd, draftPasteCmd,
		draftSubtasksCmd, draftSetCmd, draftCopyCmd, draftSelectCmd, draftDeleteCmd, draftClearCmd,
		draftSnapshotCmd, draftRestoreCmd)
}

// resolveTicketID は行番号・ID・IDの前方一致から行IDを探します
func resolveTicketID(arg string) (string, error) {
	rows := app.tickets.Rows()
	if i, err := strconv.Atoi(arg); err == nil && i >= 0 && i < len(rows) {
		return rows[i].ID, nil
	}
	return matchID(arg, len(rows), func(i int) string { return rows[i].ID })
}

func matchID(arg string, n int, idAt func(int) string) (string, error) {
	found := ""
	for i := 0; i < n; i++ {
		id := idAt(i)
		if id == arg {
			return id, nil
		}
		if strings.HasPrefix(id, arg) {
			if found != "" {
				return "", fmt.Errorf("%s: 複数の行に一致します", arg)
			}
			found = id
		}
	}
	if found == "" {
		return "", fmt.Errorf("%s: %w", arg, services.ErrRowNotFound)
	}
	return found, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ファイル読み込みエラー: %w", err)
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ファイル書き込みエラー: %w", err)
	}
	utils.LogInfo("%s に書き出しました", path)
	return nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func exportFormatFor(path string) string {
	if exportFormat != "" {
		return strings.ToLower(exportFormat)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "csv"
	}
	return "json"
}
