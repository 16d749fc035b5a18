// watch.go — команда watch: синхронизация локального файла с рабочей областью (fsnotify).
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/session"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var fileRef string
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Синхронизировать локальный файл с файлом хранилища (--file) или анонимным буфером",
		Long: "Каждое сохранение локального файла становится правкой буфера; запись в хранилище " +
			"откладывается до паузы в правках (CC_SAVE_DEBOUNCE). Ctrl-C сохраняет ожидающие правки.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := args[0]
			var (
				ws  *session.Workspace
				err error
			)
			if opts.cfg.SignedIn() {
				if fileRef == "" {
					return errors.New("укажите --file: файл хранилища для синхронизации")
				}
				ws, err = opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				f, err := resolveFile(ws, fileRef)
				if err != nil {
					closeWorkspace(ctx, ws)
					return err
				}
				if err := ws.Select(ctx, f.ID); err != nil {
					closeWorkspace(ctx, ws)
					return err
				}
			} else {
				ws, err = opts.openWorkspace(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				if l, ok := language.ByExtension(filepath.Ext(path)); ok && l.ID != ws.Buffer().Language {
					if err := ws.ChangeLanguage(ctx, l.ID); err != nil {
						closeWorkspace(ctx, ws)
						return err
					}
				}
			}
			defer func() {
				closeWorkspace(ctx, ws)
				fmt.Fprintln(cmd.ErrOrStderr(), "Ожидающие правки сохранены")
			}()

			if err := seedLocalFile(path, ws.Buffer().Code); err != nil {
				return err
			}

			fw, err := newFileWatcher(path, opts.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Наблюдение за %s (Ctrl-C — выход)\n", path)
			return fw.Run(ctx, ws)
		},
	}
	cmd.Flags().StringVar(&fileRef, "file", "", "файл хранилища (id или имя)")
	return cmd
}

// seedLocalFile создаёт локальный файл с кодом буфера, если его ещё нет.
func seedLocalFile(path, code string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("ошибка создания %s: %w", path, err)
	}
	return nil
}

// editor принимает новое содержимое буфера. Реализуется *session.Workspace.
type editor interface {
	Edit(ctx context.Context, code string) error
}

// fileWatcher превращает сохранения локального файла в правки буфера.
// Наблюдается каталог: редакторы часто сохраняют через temp-файл и rename.
type fileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	last    string
	logger  *slog.Logger
}

func newFileWatcher(path string, logger *slog.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания наблюдателя: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("ошибка наблюдения за %s: %w", filepath.Dir(abs), err)
	}

	fw := &fileWatcher{
		path:    abs,
		watcher: w,
		logger:  logger.With(slog.String("component", "file_watcher")),
	}
	if data, err := os.ReadFile(abs); err == nil {
		fw.last = string(data)
	}
	return fw, nil
}

// Run передаёт изменения файла в ed до отмены ctx. Неизменённое содержимое не передаётся.
func (fw *fileWatcher) Run(ctx context.Context, ed editor) error {
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(fw.path)
			if err != nil {
				fw.logger.Warn("Ошибка чтения файла", slog.String("error", err.Error()))
				continue
			}
			code := string(data)
			if code == fw.last {
				continue
			}
			fw.last = code
			if err := ed.Edit(ctx, code); err != nil {
				return err
			}
			fw.logger.Debug("Правка передана в буфер", slog.Int("bytes", len(code)))
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("Ошибка наблюдения за файлом", slog.String("error", err.Error()))
		}
	}
}
