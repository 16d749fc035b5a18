// errors.go — таксономия ошибок, общая для сервера и клиентских компонентов.
package model

import "errors"

var (
	// ErrTransport — хранилище или сеть недоступны. Никогда не означает дубликат имени.
	ErrTransport = errors.New("транспортная ошибка")
	// ErrValidation — не заполнены обязательные поля; возвращается до любого удалённого вызова.
	ErrValidation = errors.New("ошибка валидации")
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("файл не найден")
	// ErrUnsupportedExtension — расширение загружаемого файла не соответствует ни одному языку.
	ErrUnsupportedExtension = errors.New("неподдерживаемое расширение файла")
	// ErrNotSignedIn — операция с файлами в анонимном режиме.
	ErrNotSignedIn = errors.New("операция доступна только после входа")
)
