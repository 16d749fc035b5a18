// Пакет openapi — встроенный OpenAPI-контракт API CodeCatalyst.
package openapi

import _ "embed"

// Spec — контракт API в формате OpenAPI 3.0 (YAML).
//
//go:embed openapi.yaml
var Spec []byte
