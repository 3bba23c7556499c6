package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/config"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://x", DSN(config.DatabaseConfig{DSN: "postgres://x"}))
	require.Equal(t,
		"host=db port=5432 user=gm password=pw dbname=garage sslmode=disable",
		DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "gm", Password: "pw", DBName: "garage"}),
	)
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.Equal(t, "0001_init.sql", files[0])
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id TEXT);\n\n  ;CREATE INDEX b ON a (id);\n")
	require.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX b ON a (id)"}, stmts)
}
