package repository

import "github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"

// DatabaseFactory must be implemented by each database package / Doit être implémenté par chaque package de BD
// Repositories share one SQL implementation (sqlstore); a database package only
// describes its dialect: placeholders, id retrieval and error translation.
// Les repositories partagent une implémentation SQL (sqlstore) ; un package de BD
// ne décrit que son dialecte : paramètres, récupération d'id et traduction d'erreurs.
type DatabaseFactory interface {
	Dialect() db.Dialect
}
