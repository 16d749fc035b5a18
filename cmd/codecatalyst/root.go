// root.go — корневая команда, общие флаги и сборка рабочей области.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kishan6793/codecatalyst/internal/apiclient"
	"github.com/kishan6793/codecatalyst/internal/config"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
	"github.com/kishan6793/codecatalyst/internal/execution"
	"github.com/kishan6793/codecatalyst/internal/notify"
	"github.com/kishan6793/codecatalyst/internal/session"
)

// errReported — команда завершилась неуспешно, пользователь уже получил уведомление.
var errReported = errors.New("операция не выполнена")

// rootOptions — конфигурация и логгер, общие для команд CLI.
type rootOptions struct {
	cfg    *config.Config
	logger *slog.Logger
}

// prepare загружает конфигурацию; явно заданные флаги перекрывают CC_*.
func (o *rootOptions) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	overrides := map[string]*string{
		"api-url":      &cfg.APIURL,
		"token":        &cfg.APIToken,
		"user":         &cfg.UserID,
		"session-file": &cfg.SessionFile,
	}
	flags := cmd.Flags()
	for name, dst := range overrides {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	// В терминале по умолчанию только предупреждения и ошибки, в текстовом виде.
	if os.Getenv("CC_LOG_LEVEL") == "" {
		cfg.LogLevel = slog.LevelWarn
	}
	if os.Getenv("CC_LOG_FORMAT") == "" {
		cfg.LogFormat = "text"
	}
	o.cfg = cfg
	o.logger = config.NewLogger(cfg, cmd.ErrOrStderr())
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "codecatalyst",
		Short: "CodeCatalyst: файлы с кодом, выполнение и синхронизация редактора",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.prepare(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("api-url", "", "адрес API CodeCatalyst (перекрывает CC_API_URL)")
	pf.String("token", "", "Bearer-токен (перекрывает CC_API_TOKEN)")
	pf.String("user", "", "идентификатор пользователя (перекрывает CC_USER_ID)")
	pf.String("session-file", "", "файл локального кэша сессии (перекрывает CC_SESSION_FILE)")

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
		newLanguagesCmd(),
		newFilesCmd(opts),
		newRunCmd(opts),
		newWatchCmd(opts),
		newPrefsCmd(opts),
	)
	return cmd
}

// newRunner создаёт координатор выполнения; переход в Running печатается в out.
func (o *rootOptions) newRunner(out io.Writer) *execution.Coordinator {
	client := execution.NewClient(o.cfg.ExecutionURL, nil, o.logger)
	coord := execution.NewCoordinator(client, o.cfg.ExecutionTimeout, o.logger)
	coord.Subscribe(func(state execution.State, _ *model.ExecutionResult) {
		if state == execution.Running {
			fmt.Fprintln(out, "▶ Выполнение...")
		}
	})
	return coord
}

// openWorkspace собирает и открывает рабочую область.
// С CC_USER_ID и CC_API_TOKEN файлы берутся из API, иначе работает анонимный буфер.
func (o *rootOptions) openWorkspace(ctx context.Context, out io.Writer) (*session.Workspace, error) {
	cache, err := session.OpenFileCache(o.cfg.SessionFile)
	if err != nil {
		return nil, err
	}
	wsOpts := session.Options{
		SaveDebounce: o.cfg.SaveDebounce,
		Runner:       o.newRunner(out),
		Notifier:     notify.NewWriterNotifier(out),
		Logger:       o.logger,
	}

	var ws *session.Workspace
	if o.cfg.SignedIn() {
		store := apiclient.New(o.cfg.APIURL, o.cfg.APIToken, o.cfg.APITimeout, o.logger)
		ws, err = session.NewAuthenticated(o.cfg.UserID, store, cache, wsOpts)
		if err != nil {
			return nil, err
		}
	} else {
		ws = session.NewAnonymous(cache, wsOpts)
	}

	if err := ws.Open(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// openLocalWorkspace открывает только локальное состояние сессии, без обращений к API.
func (o *rootOptions) openLocalWorkspace(ctx context.Context, out io.Writer) (*session.Workspace, error) {
	cache, err := session.OpenFileCache(o.cfg.SessionFile)
	if err != nil {
		return nil, err
	}
	ws := session.NewAnonymous(cache, session.Options{
		Notifier: notify.NewWriterNotifier(out),
		Logger:   o.logger,
	})
	if err := ws.Open(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// openRemoteWorkspace — как openWorkspace, но только для вошедшего пользователя.
func (o *rootOptions) openRemoteWorkspace(ctx context.Context, out io.Writer) (*session.Workspace, error) {
	if !o.cfg.SignedIn() {
		return nil, fmt.Errorf("%w: задайте CC_USER_ID и CC_API_TOKEN (или --user и --token)", model.ErrNotSignedIn)
	}
	return o.openWorkspace(ctx, out)
}

// resolveFile ищет файл по id, затем по точному имени.
func resolveFile(ws *session.Workspace, ref string) (*model.FileRecord, error) {
	files := ws.Files()
	for _, f := range files {
		if f.ID == ref {
			return f, nil
		}
	}
	for _, f := range files {
		if f.Name == ref {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", model.ErrNotFound, ref)
}

// closeWorkspace сохраняет ожидающие правки даже после отмены ctx.
func closeWorkspace(ctx context.Context, ws *session.Workspace) {
	ws.Close(context.WithoutCancel(ctx))
}
