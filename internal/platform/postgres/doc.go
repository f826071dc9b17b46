// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver.
//
// Queries are built with squirrel and scanned with scany. The schema lives in
// embedded goose migrations.
package postgres
