// Package scoredb holds all the migrations for the score middleware database
package scoredb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the score middleware database
var Migrations = migrate.NewMigrations()
