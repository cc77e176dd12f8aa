// Package postgres stores pixels and users in PostgreSQL and owns the schema migrations.
package postgres
