package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("SEVDESK_API_KEY", "key-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sevdesk:
  api_key: ${SEVDESK_API_KEY}
actual:
  url: http://localhost:5006
  password: secret
  budget_id: budget-1
sync:
  lookback_days: 14
  transfer_type_codes: ["40", "81"]
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.SevDesk.APIKey)
	assert.Equal(t, "http://localhost:5006", cfg.Actual.URL)
	assert.Equal(t, 14, cfg.Sync.LookbackDays)
	assert.Equal(t, []string{"40", "81"}, cfg.Sync.TransferTypeCodes)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sevdesk:\n  api_key: k\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Sync.LookbackDays)
	assert.Equal(t, "1000", cfg.Sync.PaidStatusCode)
	assert.Equal(t, "sevDesk", cfg.Actual.AccountName)
	assert.Equal(t, "sevactual.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "invalid_vouchers.md", cfg.Sync.ReportPath)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEVDESK_API_KEY", "k")
	t.Setenv("ACTUAL_URL", "http://localhost:5006")
	t.Setenv("ACTUAL_PASSWORD", "p")
	t.Setenv("ACTUAL_BUDGET_ID", "b")
	t.Setenv("SYNC_LOOKBACK_DAYS", "7")
	t.Setenv("SMTP_TO", "a@example.com, b@example.com")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 7, cfg.Sync.LookbackDays)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.SMTP.To)
}

func TestValidate_ReportsMissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sevdesk.api_key")
	assert.Contains(t, err.Error(), "actual.budget_id")
}
