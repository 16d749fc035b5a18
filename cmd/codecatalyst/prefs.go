// prefs.go — команда prefs: настройки редактора в кэше сессии.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPrefsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Настройки редактора (тема, тема редактора, размер шрифта)",
	}
	cmd.AddCommand(newPrefsGetCmd(opts), newPrefsSetCmd(opts))
	return cmd
}

func newPrefsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Показать настройки",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ws, err := opts.openLocalWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			data, err := yaml.Marshal(ws.Preferences())
			if err != nil {
				return fmt.Errorf("ошибка сериализации настроек: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newPrefsSetCmd(opts *rootOptions) *cobra.Command {
	var (
		theme       string
		editorTheme string
		fontSize    int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Изменить настройки (меняются только заданные флаги)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ws, err := opts.openLocalWorkspace(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeWorkspace(ctx, ws)

			p := ws.Preferences()
			flags := cmd.Flags()
			if flags.Changed("theme") {
				p.Theme = theme
			}
			if flags.Changed("editor-theme") {
				p.EditorTheme = editorTheme
			}
			if flags.Changed("font-size") {
				p.EditorFontSize = fontSize
			}
			if err := ws.SetPreferences(ctx, p); err != nil {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "тема интерфейса (dark, light)")
	cmd.Flags().StringVar(&editorTheme, "editor-theme", "", "тема редактора")
	cmd.Flags().IntVar(&fontSize, "font-size", 0, "размер шрифта редактора")
	return cmd
}
