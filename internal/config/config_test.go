package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openrail.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `db_server: db.example.net
db_name: rail
db_user: railuser
db_password: secret
nr_user: feeds@example.net
nr_server: datafeeds.example.net
debug: true
stompy_port: 55900
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.example.net", cfg.DBServer)
	assert.Equal(t, "rail", cfg.DBName)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 55900, cfg.StompyPort)

	// Unset keys fall back to defaults.
	assert.Equal(t, 16, cfg.DeferredQueue)
	assert.Equal(t, 32, cfg.DeferredRetryS)
	assert.Equal(t, 64000, cfg.LatencyAlertMs)
	assert.Equal(t, 4, cfg.DailyReportHour)
	assert.Equal(t, 2, cfg.DailyReportMin)
	assert.Equal(t, "/tmp", cfg.TmpDir)
}

func TestLoadRequiresDatabase(t *testing.T) {
	path := writeConfig(t, "db_server: localhost\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/openrail.conf")
	assert.Error(t, err)
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("OPENRAIL_DB_PASSWORD", "from-env")
	path := writeConfig(t, "db_name: rail\ndb_user: railuser\ndb_password: from-file\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DBPassword)
}

func TestConnString(t *testing.T) {
	cfg := &Config{DBServer: "h", DBName: "n", DBUser: "u", DBPassword: "p"}
	assert.Equal(t, "host=h dbname=n user=u password=p sslmode=disable",
		cfg.ConnString())
}
