// Точка входа CodeCatalyst: API-сервер файлов (serve) и CLI рабочей области
// (файлы, выполнение кода, синхронизация локального файла, настройки).
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Сообщение уже показано уведомлением рабочей области.
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Ошибка:", err)
		}
		os.Exit(1)
	}
}
