// run.go — команда run: выполнение буфера, файла или локального исходника.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
	"github.com/kishan6793/codecatalyst/internal/execution"
	"github.com/kishan6793/codecatalyst/internal/notify"
	"github.com/kishan6793/codecatalyst/internal/session"
)

// transportPrefix отличает сбой сервиса выполнения от stderr программы.
const transportPrefix = "[сервис выполнения недоступен] "

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		fileRef   string
		stdinPath string
		lang      string
	)
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Выполнить код: локальный файл, файл хранилища (--file) или текущий буфер",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 && fileRef != "" {
				return errors.New("укажите либо путь, либо --file")
			}

			stdin := ""
			if stdinPath != "" {
				data, err := readInput(cmd.InOrStdin(), stdinPath)
				if err != nil {
					return err
				}
				stdin = data
			}

			var (
				ws  *session.Workspace
				err error
			)
			switch {
			case len(args) == 1:
				ws, err = opts.scratchWorkspace(cmd, args[0], lang)
			case fileRef != "":
				ws, err = opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
				if err == nil {
					var f *model.FileRecord
					if f, err = resolveFile(ws, fileRef); err == nil {
						err = ws.Select(ctx, f.ID)
					}
				}
			default:
				ws, err = opts.openWorkspace(ctx, cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			res, err := ws.Run(ctx, stdin)
			if err != nil {
				if errors.Is(err, execution.ErrBusy) {
					return errors.New("выполнение уже запущено")
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
		},
	}
	cmd.Flags().StringVar(&fileRef, "file", "", "файл хранилища (id или имя)")
	cmd.Flags().StringVar(&stdinPath, "stdin", "", "файл со входными данными программы (- — стандартный ввод)")
	cmd.Flags().StringVarP(&lang, "language", "l", "", "язык локального файла (по умолчанию — по расширению)")
	return cmd
}

// scratchWorkspace — анонимная рабочая область в памяти с кодом из path.
// Буфер сессии пользователя не затрагивается.
func (o *rootOptions) scratchWorkspace(cmd *cobra.Command, path, lang string) (*session.Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		l, ok := language.ByExtension(filepath.Ext(path))
		if !ok {
			return nil, fmt.Errorf("%w: %q, укажите --language", model.ErrUnsupportedExtension, filepath.Ext(path))
		}
		lang = l.ID
	}

	ctx := cmd.Context()
	ws := session.NewAnonymous(session.NewMemoryCache(), session.Options{
		Runner:   o.newRunner(cmd.ErrOrStderr()),
		Notifier: notify.NewWriterNotifier(cmd.ErrOrStderr()),
		Logger:   o.logger,
	})
	if err := ws.Open(ctx); err != nil {
		return nil, err
	}
	if err := ws.ChangeLanguage(ctx, lang); err != nil {
		return nil, err
	}
	if err := ws.Edit(ctx, string(data)); err != nil {
		return nil, err
	}
	return ws, nil
}

// printResult печатает вывод программы; сбой сервиса выполнения — в stderr с префиксом.
func printResult(stdout, stderr io.Writer, res model.ExecutionResult) error {
	if res.IsTransportError {
		fmt.Fprintln(stderr, transportPrefix+res.Output)
		return errReported
	}
	out := res.Output
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(stdout, out)
	return err
}

// readInput читает файл или стандартный ввод ("-").
func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
