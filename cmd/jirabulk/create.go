package main

import (
	"os"

	"github.com/spf13/cobra"

	"jirabulk/services"
	"jirabulk/utils"
)

var createDryRun bool

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "選択中の行を JIRA に一括作成する",
	Long: `選択中の行を表示順に1件ずつ作成します。

同じ作業セット内の Epic を親に指定した Task は、先に作成された Epic のキーを使います。
行ごとの失敗は記録して次の行へ進みます。すべて成功した場合のみ行を消去します。
Ctrl-C で中断すると、未送信の行は "Cancelled before submission" として記録されます。

--dry-run は JIRA を呼ばずに仮のキーで流れを確認するだけです。履歴には残りますが、
行の消去や下書きの変更・保存は行いません。`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "JIRA を呼ばずに仮のキーを採番する (行の消去や下書きの変更はしない)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// dry-run でも接続済みなら履歴にプロジェクトキーと URL を残す
	var creator services.IssueCreator
	if app.jira != nil {
		creator = app.jira
	} else if !createDryRun {
		if _, err := app.requireJira(); err != nil {
			return err
		}
	}

	svc := services.NewCreationService(creator, app.tickets, app.history, app.settings)
	record, err := svc.Run(ctx, services.RunOptions{
		DryRun:   createDryRun,
		Progress: logProgress,
	})
	if err != nil {
		return err
	}

	if !record.DryRun {
		if n := app.edits.AddFromCreatedTickets(record.Tickets); n > 0 {
			if err := app.edits.Save(ctx); err != nil {
				utils.LogWarn("編集行の保存に失敗しました: %v", err)
			}
			utils.LogInfo("作成したイシュー %d 件を編集行に追加しました", n)
		}
	}

	if jsonOutput {
		return printJSON(record)
	}
	renderCreationRecord(os.Stdout, record)
	return nil
}

func logProgress(p services.Progress) {
	utils.Logger().Info(p.Message, "current", p.Current, "total", p.Total)
}
