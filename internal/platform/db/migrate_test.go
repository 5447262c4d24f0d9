package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndEmbedded(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.Equal(t, []string{"migrations/0001_inventory_alerts.sql", "migrations/0002_audit_logs.sql"}, names)

	body, err := migrations.ReadFile(names[0])
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "WHERE acknowledged_at IS NULL AND resolved_at IS NULL"),
		"open alerts must be unique per fingerprint")
}
