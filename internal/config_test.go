package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/timelapse/internal/landsat"
	pkgconfig "github.com/starford/timelapse/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Status.Auth.Mode = "token"
	cfg.Status.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Status.Enabled() {
		t.Error("status server should be off by default")
	}
	region, err := cfg.Area.Region()
	if err != nil {
		t.Fatalf("Region: %v", err)
	}
	if got := region.BoundingBox(); got != DefaultRegion {
		t.Errorf("bbox = %+v, want %+v", got, DefaultRegion)
	}
}

func TestPipelineConfig_Invalid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Pipeline.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero workers should fail validation")
	}

	cfg = NewDefaultConfig()
	cfg.Pipeline.Bands = "thermal"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown band combination should fail validation")
	}
}

func TestPipelineConfig_Combinations(t *testing.T) {
	for _, c := range []landsat.Combination{landsat.CombinationVegetation, landsat.CombinationNatural, landsat.CombinationUrban} {
		cfg := NewDefaultConfig()
		cfg.Pipeline.Bands = c
		if err := cfg.Validate(); err != nil {
			t.Errorf("bands %q: %v", c, err)
		}
	}
}

func TestAreaConfig_Invalid(t *testing.T) {
	cfg := AreaConfig{RegionOfInterest: [][2]float64{{3, 6}, {3, 6}}}
	if err := cfg.Validate(); err == nil {
		t.Error("degenerate region should fail validation")
	}
}

func TestLedgerConfig_PathIn(t *testing.T) {
	var c LedgerConfig
	if got := c.PathIn("/out"); got != filepath.Join("/out", "ledger.db") {
		t.Errorf("default path = %q", got)
	}
	c.Path = "/var/lib/timelapse.db"
	if got := c.PathIn("/out"); got != c.Path {
		t.Errorf("explicit path = %q, want %q", got, c.Path)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("TIMELAPSE_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  log_format: text
status:
  port: 9090
  auth:
    mode: token
    token: ${TIMELAPSE_TEST_TOKEN}
area:
  region_of_interest:
    - [3.0, 6.7]
    - [3.7, 6.7]
    - [3.7, 6.4]
    - [3.0, 6.4]
pipeline:
  workers: 4
  bands: natural
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogFormat != LogFormatText || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if !cfg.Status.Enabled() || cfg.Status.Auth.Token != "s3cret" {
		t.Errorf("status = %+v", cfg.Status)
	}
	if cfg.Pipeline.Workers != 4 || cfg.Pipeline.Bands != "natural" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Pipeline.TargetSRS != "EPSG:3857" || cfg.Retrieval.Bucket != "earthengine-public" {
		t.Errorf("defaults lost: %+v %+v", cfg.Pipeline, cfg.Retrieval)
	}
}
