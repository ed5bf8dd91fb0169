// Package migrations embeds the SQL schema of every supported database.
// Package migrations embarque le schéma SQL de chaque base supportée.
package migrations

import "embed"

// FS holds <dialect>/NNNNNN_name.{up,down}.sql files / Contient les fichiers <dialecte>/NNNNNN_nom.{up,down}.sql
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
