package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/swapgate/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
environment: dev
apiServer:
  addr: ":8880"
exchange:
  baseUrl: https://api-adapter.backend.currency.com
  apiKey: key
  apiSecret: secret
quotes:
  buyFeePercent: "2"
  sellFeePercent: "2"
  validityWindow: 30s
  pairs: [BTC/USD, ETH/USD]
telemetry:
  serviceName: swapgate
  enableMetrics: false
database:
  dsn: postgresql://localhost:5432/swapgate
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != EnvDev {
		t.Fatalf("environment = %s, want dev", cfg.Environment)
	}
	if !cfg.Quotes.BuyFee().Equal(decimal.NewFromInt(2)) {
		t.Fatalf("buy fee = %s, want 2", cfg.Quotes.BuyFee())
	}
	if cfg.Quotes.ValidityWindow != 30*time.Second {
		t.Fatalf("validity window = %s, want 30s", cfg.Quotes.ValidityWindow)
	}
	if len(cfg.Quotes.Pairs) != 2 {
		t.Fatalf("pairs = %v, want 2 entries", cfg.Quotes.Pairs)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, `
environment: prod
exchange:
  apiKey: key
  apiSecret: secret
quotes:
  buyFeePercent: "1.5"
  sellFeePercent: "1.5"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIServer.Addr != ":8880" {
		t.Fatalf("addr = %s, want :8880", cfg.APIServer.Addr)
	}
	if cfg.Exchange.BaseURL == "" {
		t.Fatal("exchange base URL default not applied")
	}
	if cfg.Quotes.ValidityWindow != 30*time.Second {
		t.Fatalf("validity window = %s, want default 30s", cfg.Quotes.ValidityWindow)
	}
	if cfg.Database.MaxConns != 16 {
		t.Fatalf("maxConns = %d, want 16", cfg.Database.MaxConns)
	}
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, `
environment: sandbox
exchange:
  apiKey: key
  apiSecret: secret
quotes:
  buyFeePercent: "2"
  sellFeePercent: "2"
`))
	if !errs.Is(err, errs.CodeConfig) {
		t.Fatalf("code = %s, want config", errs.CodeOf(err))
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, `
environment: dev
exchange:
  apiKey: key
quotes:
  buyFeePercent: "2"
  sellFeePercent: "2"
`))
	if !errs.Is(err, errs.CodeConfig) {
		t.Fatalf("code = %s, want config", errs.CodeOf(err))
	}
}

func TestLoadRejectsBadFees(t *testing.T) {
	for _, fee := range []string{"abc", "-1", "101"} {
		_, err := Load(context.Background(), writeConfig(t, `
environment: dev
exchange:
  apiKey: key
  apiSecret: secret
quotes:
  buyFeePercent: "`+fee+`"
  sellFeePercent: "2"
`))
		if !errs.Is(err, errs.CodeConfig) {
			t.Fatalf("fee %q: code = %s, want config", fee, errs.CodeOf(err))
		}
	}
}

func TestLoadDeduplicatesPairs(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, `
environment: dev
exchange:
  apiKey: key
  apiSecret: secret
quotes:
  buyFeePercent: "2"
  sellFeePercent: "2"
  pairs: [BTC/USD, btc/usd, " ", ETH/USD]
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Quotes.Pairs) != 2 {
		t.Fatalf("pairs = %v, want deduplicated 2 entries", cfg.Quotes.Pairs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	if !errs.Is(err, errs.CodeConfig) {
		t.Fatalf("code = %s, want config", errs.CodeOf(err))
	}
}
