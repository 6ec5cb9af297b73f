package schemas

import "embed"

// SchemasFS содержит все JSON-схемы контрактов сервиса.
//
//go:embed events
var SchemasFS embed.FS
