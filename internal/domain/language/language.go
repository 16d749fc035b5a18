// Пакет language — статический каталог поддерживаемых языков.
// Каталог неизменяем: идентификатор, версия рантайма, стартовый сниппет,
// расширение файла и иконка. Используется при создании, загрузке и скачивании файлов.
package language

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kishan6793/codecatalyst/internal/domain/model"
)

// Default — язык буфера по умолчанию.
const Default = "javascript"

// FallbackExtension — расширение при скачивании, если язык не найден в каталоге.
const FallbackExtension = "txt"

// DefaultDownloadName — имя скачиваемого файла без выбранного файла.
const DefaultDownloadName = "code"

const iconBase = "https://cdn.jsdelivr.net/gh/devicons/devicon@latest/icons/"

// Language — запись каталога.
type Language struct {
	// ID — идентификатор языка для сервиса выполнения
	ID string `json:"language"`
	// Version — версия рантайма
	Version string `json:"version"`
	// Snippet — стартовый код нового файла
	Snippet string `json:"code_snippet"`
	// Info — краткая справка для панели языка
	Info string `json:"info"`
	// Icon — URL иконки
	Icon string `json:"icon"`
	// Extension — расширение файла без точки
	Extension string `json:"extension"`
}

var catalog = []Language{
	{
		ID:        "c",
		Version:   "10.2.0",
		Snippet:   "#include <stdio.h>\n\nint main() {\n\tprintf(\"Welcome to codeCatalyst\");\n\treturn 0;\n}\n",
		Info:      "C (GCC 10.2.0)",
		Icon:      iconBase + "c/c-original.svg",
		Extension: "c",
	},
	{
		ID:        "cpp",
		Version:   "10.2.0",
		Snippet:   "#include <bits/stdc++.h>\nusing namespace std;\n\nint main() {\n\tcout << \"Welcome to codeCatalyst\" << endl;\n\treturn 0;\n}\n",
		Info:      "C++ (G++ 10.2.0), STL доступна",
		Icon:      iconBase + "cplusplus/cplusplus-original.svg",
		Extension: "cpp",
	},
	{
		ID:        "java",
		Version:   "15.0.2",
		Snippet:   "import java.util.*;\nimport java.io.*;\n\npublic class Welcome {\n\tpublic static void main(String[] args) {\n\t\tSystem.out.println(\"Welcome to codeCatalyst\");\n\t}\n}\n",
		Info:      "Java 15, java.util доступен",
		Icon:      iconBase + "java/java-original.svg",
		Extension: "java",
	},
	{
		ID:        "javascript",
		Version:   "18.15.0",
		Snippet:   "function welcome() {\n\tconsole.log(\"Welcome to codeCatalyst\");\n}\n\nwelcome();\n",
		Info:      "Node.js 18.15.0",
		Icon:      iconBase + "javascript/javascript-original.svg",
		Extension: "js",
	},
	{
		ID:        "typescript",
		Version:   "5.0.3",
		Snippet:   "type Params = {\n\tmessage: string;\n}\n\nfunction welcome(data: Params) {\n\tconsole.log(data.message);\n}\n\nwelcome({ message: \"Welcome to codeCatalyst\" });\n",
		Info:      "TypeScript 5.0.3",
		Icon:      iconBase + "typescript/typescript-original.svg",
		Extension: "ts",
	},
	{
		ID:        "python",
		Version:   "3.10.0",
		Snippet:   "def welcome():\n\tprint(\"Welcome to codeCatalyst\")\n\nwelcome()\n",
		Info:      "Python 3.10.0",
		Icon:      iconBase + "python/python-original.svg",
		Extension: "py",
	},
	{
		ID:        "go",
		Version:   "1.16.2",
		Snippet:   "package main\nimport \"fmt\"\n\nfunc welcome() {\n\tfmt.Println(\"Welcome to codeCatalyst\")\n}\n\nfunc main() {\n\twelcome()\n}\n",
		Info:      "Go 1.16.2",
		Icon:      iconBase + "go/go-original-wordmark.svg",
		Extension: "go",
	},
	{
		ID:        "csharp",
		Version:   "6.12.0",
		Snippet:   "using System;\nusing System.Collections.Generic;\n\nnamespace CodeEditor\n{\n\tclass Welcome {\n\t\tstatic void Main(string[] args) {\n\t\t\tConsole.WriteLine(\"Welcome to codeCatalyst\");\n\t\t}\n\t}\n}\n",
		Info:      "C# (Mono 6.12.0)",
		Icon:      iconBase + "csharp/csharp-original.svg",
		Extension: "cs",
	},
	{
		ID:        "kotlin",
		Version:   "1.8.20",
		Snippet:   "import java.util.*;\n\nfun welcome() {\n\tprintln(\"Welcome to codeCatalyst\")\n}\n\nfun main() {\n\twelcome()\n}\n",
		Info:      "Kotlin 1.8.20",
		Icon:      iconBase + "kotlin/kotlin-original.svg",
		Extension: "kt",
	},
	{
		ID:        "perl",
		Version:   "5.36.0",
		Snippet:   "use List::Util qw(shuffle);\n\nsub welcome {\n\tprint \"Welcome to codeCatalyst\\n\";\n}\n\nwelcome();\n",
		Info:      "Perl 5.36.0",
		Icon:      iconBase + "perl/perl-original.svg",
		Extension: "pl",
	},
	{
		ID:        "php",
		Version:   "8.2.3",
		Snippet:   "<?php\n\necho \"Welcome to codeCatalyst\";\n",
		Info:      "PHP 8.2.3",
		Icon:      iconBase + "php/php-original.svg",
		Extension: "php",
	},
	{
		ID:        "ruby",
		Version:   "3.0.1",
		Snippet:   "def welcome\n\tputs \"Welcome to codeCatalyst\"\nend\n\nwelcome()\n",
		Info:      "Ruby 3.0.1",
		Icon:      iconBase + "ruby/ruby-original.svg",
		Extension: "rb",
	},
	{
		ID:        "rust",
		Version:   "1.68.2",
		Snippet:   "fn welcome() {\n\tprintln!(\"Welcome to codeCatalyst\");\n}\n\nfn main() {\n\twelcome();\n}\n",
		Info:      "Rust 1.68.2",
		Icon:      iconBase + "rust/rust-original.svg",
		Extension: "rs",
	},
	{
		ID:        "swift",
		Version:   "5.3.3",
		Snippet:   "import Foundation\n\nfunc welcome() {\n\tprint(\"Welcome to codeCatalyst\")\n}\n\nwelcome()\n",
		Info:      "Swift 5.3.3",
		Icon:      iconBase + "swift/swift-original.svg",
		Extension: "swift",
	},
	{
		ID:        "bash",
		Version:   "5.2.0",
		Snippet:   "#!/bin/bash\n\necho \"Welcome to codeCatalyst\"\n",
		Info:      "Bash 5.2.0",
		Icon:      iconBase + "bash/bash-original.svg",
		Extension: "sh",
	},
}

// All возвращает копию каталога в фиксированном порядке.
func All() []Language {
	out := make([]Language, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup возвращает язык по идентификатору.
func Lookup(id string) (Language, bool) {
	for _, l := range catalog {
		if l.ID == id {
			return l, true
		}
	}
	return Language{}, false
}

// ByExtension возвращает язык по расширению файла (без точки, без учёта регистра).
func ByExtension(ext string) (Language, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, l := range catalog {
		if l.Extension == ext {
			return l, true
		}
	}
	return Language{}, false
}

// Extension возвращает расширение для языка или FallbackExtension.
func Extension(id string) string {
	if l, ok := Lookup(id); ok {
		return l.Extension
	}
	return FallbackExtension
}

// Snippet возвращает стартовый код языка или пустую строку.
func Snippet(id string) string {
	if l, ok := Lookup(id); ok {
		return l.Snippet
	}
	return ""
}

// DownloadName формирует имя скачиваемого файла: <name>.<ext> или code.<ext>.
func DownloadName(name, id string) string {
	if name == "" {
		name = DefaultDownloadName
	}
	return name + "." + Extension(id)
}

// SplitUpload разбирает имя загружаемого файла на имя записи и язык.
// Расширение берётся по последней точке; без совпадения в каталоге — ErrUnsupportedExtension.
func SplitUpload(filename string) (name string, lang Language, err error) {
	base := filepath.Base(filename)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	lang, ok := ByExtension(ext)
	if !ok {
		return "", Language{}, fmt.Errorf("%w: %q", model.ErrUnsupportedExtension, ext)
	}
	return strings.TrimSuffix(base, filepath.Ext(base)), lang, nil
}
