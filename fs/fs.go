// Package appfs embeds the files shipped within the binary.
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
