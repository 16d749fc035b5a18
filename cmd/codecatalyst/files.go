// files.go — команды languages и files.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kishan6793/codecatalyst/internal/domain/language"
	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "Показать каталог языков",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LANGUAGE\tVERSION\tEXT\tINFO")
			for _, l := range language.All() {
				fmt.Fprintf(tw, "%s\t%s\t.%s\t%s\n", l.ID, l.Version, l.Extension, l.Info)
			}
			return tw.Flush()
		},
	}
}

func newFilesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Файлы пользователя в хранилище CodeCatalyst",
	}
	cmd.AddCommand(
		newFilesListCmd(opts),
		newFilesNewCmd(opts),
		newFilesUploadCmd(opts),
		newFilesRenameCmd(opts),
		newFilesRmCmd(opts),
		newFilesSearchCmd(opts),
		newFilesShowCmd(opts),
		newFilesDownloadCmd(opts),
	)
	return cmd
}

func newFilesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Список файлов (* — выбранный)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			selected := ""
			if f, ok := ws.SelectedFile(); ok {
				selected = f.ID
			}
			return printFiles(cmd.OutOrStdout(), ws.Files(), selected)
		},
	}
}

func newFilesNewCmd(opts *rootOptions) *cobra.Command {
	var lang, from string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Создать файл (код — стартовый сниппет языка или --from)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			var res model.CreateResult
			if from != "" {
				data, readErr := os.ReadFile(from)
				if readErr != nil {
					return readErr
				}
				res, err = ws.CreateFileWithCode(ctx, args[0], lang, string(data))
			} else {
				res, err = ws.CreateFile(ctx, args[0], lang)
			}
			if err != nil {
				return err
			}
			if !res.Created() {
				return errReported
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", language.Default, "язык файла")
	cmd.Flags().StringVar(&from, "from", "", "взять код из локального файла")
	return cmd
}

func newFilesUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Загрузить локальный файл (имя и язык по расширению)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			res, err := ws.Upload(ctx, filepath.Base(args[0]), string(data))
			if err != nil {
				return errReported
			}
			if !res.Created() {
				return errReported
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.ID)
			return nil
		},
	}
}

func newFilesRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <file> <new-name>",
		Short: "Переименовать файл (по id или имени)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			f, err := resolveFile(ws, args[0])
			if err != nil {
				return err
			}
			outcome, err := ws.Rename(ctx, f.ID, args[1])
			if err != nil {
				return err
			}
			if outcome == model.OutcomeDuplicateName {
				return errReported
			}
			return nil
		},
	}
}

func newFilesRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <file>",
		Aliases: []string{"delete"},
		Short:   "Удалить файл (по id или имени)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			f, err := resolveFile(ws, args[0])
			if err != nil {
				return err
			}
			return ws.Delete(ctx, f.ID)
		},
	}
}

func newFilesSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <prefix>",
		Short: "Найти файлы по префиксу имени (с учётом регистра)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			found, err := ws.Search(ctx, args[0])
			if err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), found, "")
		},
	}
}

func newFilesShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Выбрать файл и вывести его код",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.openRemoteWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			f, err := resolveFile(ws, args[0])
			if err != nil {
				return err
			}
			if err := ws.Select(ctx, f.ID); err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), ws.Buffer().Code)
			return err
		},
	}
}

func newFilesDownloadCmd(opts *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download [file]",
		Short: "Сохранить код в локальный файл <имя>.<расширение> (без аргумента — текущий буфер)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.openWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			if len(args) == 1 {
				f, err := resolveFile(ws, args[0])
				if err != nil {
					return err
				}
				if err := ws.Select(ctx, f.ID); err != nil {
					return err
				}
			}

			name, content, err := ws.Download(ctx)
			if err != nil {
				return errReported
			}
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("ошибка записи %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output-dir", "o", ".", "каталог для сохранения")
	return cmd
}

// printFiles печатает таблицу файлов; selected помечается звёздочкой.
func printFiles(w io.Writer, files []*model.FileRecord, selected string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tNAME\tLANGUAGE\tSIZE")
	for _, f := range files {
		mark := " "
		if f.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", mark, f.ID, f.Name, f.Language, len(f.Code))
	}
	return tw.Flush()
}
