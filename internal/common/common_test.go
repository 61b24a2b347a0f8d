package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stream-escrow-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAssetSymbols(t *testing.T) {
	path := writeFile(t, "assets.yaml", `
assets:
  - symbol: USDC
    network: base
  - symbol: EURC
`)
	symbols, err := LoadAssetSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"USDC", "EURC"}, symbols)
}

func TestLoadAssetConfig_Rejects(t *testing.T) {
	_, err := LoadAssetConfig(writeFile(t, "dup.yaml", "assets:\n  - symbol: USDC\n  - symbol: USDC\n"))
	assert.Error(t, err)

	_, err = LoadAssetConfig(writeFile(t, "blank.yaml", "assets:\n  - network: base\n"))
	assert.Error(t, err)

	_, err = LoadAssetConfig(writeFile(t, "empty.yaml", "assets: []\n"))
	assert.Error(t, err)

	_, err = LoadAssetConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFundingPlan(t *testing.T) {
	path := writeFile(t, "funding.yaml", `
funding:
  - account: alice
    asset: USDC
    amount: "170141183460469231731687303715884105727"
    external_tx_id: seed-1
  - account: bob
    amount: "500"
`)
	plan, err := LoadFundingPlan(path)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "seed-1", plan[0].ExternalTxId)

	big, err := plan[0].ParsedAmount()
	require.NoError(t, err)
	assert.Equal(t, "170141183460469231731687303715884105727", big.String())

	_, err = LoadFundingPlan(writeFile(t, "neg.yaml", "funding:\n  - account: a\n    amount: \"-1\"\n"))
	assert.Error(t, err)

	_, err = LoadFundingPlan(writeFile(t, "frac.yaml", "funding:\n  - account: a\n    amount: \"1.5\"\n"))
	assert.Error(t, err)
}

type staticLister []string

func (s staticLister) ListAccounts(context.Context) ([]string, error) { return s, nil }

func TestInitializeAccounts(t *testing.T) {
	logger := zap.NewNop()

	accounts, err := InitializeAccounts(context.Background(), staticLister{"a", "b"}, "", logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, accounts)

	accounts, err = InitializeAccounts(context.Background(), staticLister{"a", "b"}, "z", logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, accounts)
}

func TestInitializeServices_BuildsEngine(t *testing.T) {
	assets := writeFile(t, "assets.yaml", "assets:\n  - symbol: USDC\n")
	cfg := &models.Config{
		Database: models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: time.Second},
		Engine:   models.EngineConfig{HoldingAccount: "escrow-holding", DefaultAsset: "USDC", AssetsFile: assets},
		Events:   models.EventsConfig{Backend: "log"},
	}

	services, err := InitializeServices(context.Background(), cfg)
	require.NoError(t, err)
	defer services.Close()

	ctx := context.Background()
	require.NoError(t, services.Engine.Fund(ctx, "alice", "", decimal.NewFromInt(5), ""))
	assert.Error(t, services.Engine.Fund(ctx, "alice", "EURC", decimal.NewFromInt(5), ""))

	cfg.Events.Backend = "carrier-pigeon"
	_, err = InitializeServices(ctx, cfg)
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report := NewReport(&buf, 10)

	report.Header("TITLE")
	report.Section("Account: alice", "Assets: 2")
	report.Items([]string{"USDC 10", "EURC 5"})
	report.Footer("done")

	out := buf.String()
	assert.Contains(t, out, "==========\nTITLE\n==========\n")
	assert.Contains(t, out, "┌─ Account: alice\n│  Assets: 2\n")
	assert.Contains(t, out, "│  USDC 10\n└  EURC 5\n")
	assert.True(t, strings.HasSuffix(out, "done\n==========\n\n"))
}
