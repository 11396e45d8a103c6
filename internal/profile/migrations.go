package profile

import "embed"

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"

// Migrations carries the schema for the users table.
//
//go:embed migrations/*.sql
var Migrations embed.FS
