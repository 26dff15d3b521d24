package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jirabulk/api"
	"jirabulk/config"
	"jirabulk/services"
	"jirabulk/storage"
	"jirabulk/utils"
)

// Global flags
var (
	jsonOutput bool
	logLevel   string
)

// application はコマンド間で共有する状態です
type application struct {
	cfg      *config.Config
	store    storage.Store
	settings *services.SettingsStore
	tickets  *services.TicketStore
	edits    *services.EditStore
	history  *services.HistoryStore

	// JIRA接続が設定されていない場合は nil
	jira *api.JiraClient
}

var app *application

var rootCmd = &cobra.Command{
	Use:   "jirabulk",
	Short: "JIRA のイシューを一括で作成・編集するツール",
	Long: `jirabulk はスプレッドシート形式の行から JIRA の Epic / Task を一括作成し、
既存イシューの summary / description を CSV 経由で一括更新します。

例:
  jirabulk draft import tickets.csv     # 作成待ちの行を取り込む
  jirabulk create --dry-run             # JIRA を呼ばずに確認する
  jirabulk create                       # 選択中の行を作成する
  jirabulk edit import export.csv       # 既存イシューを取り込む
  jirabulk edit apply                   # 変更した行を JIRA に反映する
  jirabulk serve                        # ブラウザ向けプロキシを起動する

環境変数:
  JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN, JIRA_PROJECT_KEY
  JIRABULK_STORAGE_BACKEND (sqlite | redis | memory), JIRABULK_STORAGE_PATH`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON で出力する")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	rootCmd.AddCommand(authCheckCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		_ = closeApp()
		fmt.Fprintln(os.Stderr, failStyle.Render("エラー: "+err.Error()))
		os.Exit(1)
	}
}

// setupApp は設定の読み込み・ロガー初期化・ストアの読み込みを行います
func setupApp(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	ctx := cmd.Context()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := utils.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput); err != nil {
		return err
	}

	store, err := storage.Open(ctx, storage.Options{
		Backend:       cfg.StorageBackend,
		Path:          cfg.StoragePath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("ストレージを開けませんでした: %w", err)
	}

	a := &application{
		cfg:      cfg,
		store:    store,
		settings: services.NewSettingsStore(store),
		tickets:  services.NewTicketStore(store),
		edits:    services.NewEditStore(store),
		history:  services.NewHistoryStore(store),
	}
	app = a

	loaders := []func(context.Context) error{a.settings.Load, a.tickets.Load, a.edits.Load, a.history.Load}
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			return fmt.Errorf("保存データの読み込みに失敗しました: %w", err)
		}
	}

	a.settings.ApplyTo(cfg)
	if err := cfg.Validate(); err == nil {
		a.jira = api.NewJiraClient(cfg)
	} else {
		utils.Logger().Debug("JIRA接続は未設定です", "error", err)
	}

	utils.Logger().Debug("初期化完了", "storage", cfg.StorageBackend, "elapsed", time.Since(startTime))
	return nil
}

func closeApp() error {
	if app == nil || app.store == nil {
		return nil
	}
	err := app.store.Close()
	app.store = nil
	return err
}

// requireJira は接続が設定されていない場合にエラーを返します
func (a *application) requireJira() (*api.JiraClient, error) {
	if a.jira == nil {
		if err := a.cfg.Validate(); err != nil {
			return nil, err
		}
		return nil, errors.New("JIRA client is not initialized")
	}
	return a.jira, nil
}
