package utilities_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"
)

type mockConfigJson struct {
	Name  string `json:"name"`
	Port  uint16 `json:"port"`
	Debug bool   `json:"debug"`
}

type mockConfig struct {
	Name  string
	Port  uint16
	Debug bool
}

func (mcj mockConfigJson) ConvertToDomain() mockConfig {
	return mockConfig{
		Name:  mcj.Name,
		Port:  utilities.Ternary(mcj.Port == 0, uint16(9000), mcj.Port),
		Debug: mcj.Debug,
	}
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"name":"rikuy","debug":true}`), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	result, err := utilities.ReadConfig[mockConfigJson, mockConfig](path)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if result.Name != "rikuy" || !result.Debug {
		t.Errorf("Unexpected config: %+v", result)
	}
	if result.Port != 9000 {
		t.Errorf("Expected default port 9000, got %d", result.Port)
	}
}

func TestReadConfigErrors(t *testing.T) {
	if _, err := utilities.ReadConfig[mockConfigJson, mockConfig]("nonexistent_file.json"); err == nil {
		t.Error("Expected error when reading nonexistent file")
	}

	if _, err := utilities.ParseConfig[mockConfigJson, mockConfig]([]byte("{ invalid json")); err == nil {
		t.Error("Expected error when parsing invalid JSON")
	}
}

func TestConvertJsonArrayToDomain(t *testing.T) {
	result := utilities.ConvertJsonArrayToDomain[mockConfigJson, mockConfig]([]mockConfigJson{
		{Name: "a", Port: 1},
		{Name: "b"},
	})

	if len(result) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(result))
	}
	if result[1].Port != 9000 {
		t.Errorf("Expected converted default, got %d", result[1].Port)
	}

	if empty := utilities.ConvertJsonArrayToDomain[mockConfigJson, mockConfig](nil); len(empty) != 0 {
		t.Errorf("Expected empty slice, got %d items", len(empty))
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RIKUY_TEST_VALUE", "  from-env ")
	t.Setenv("RIKUY_TEST_BOOL", "true")
	t.Setenv("RIKUY_TEST_BAD_BOOL", "maybe")

	if got := utilities.EnvOr("RIKUY_TEST_VALUE", "fallback"); got != "from-env" {
		t.Errorf("Expected trimmed env value, got %q", got)
	}
	if got := utilities.EnvOr("RIKUY_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %q", got)
	}
	if !utilities.EnvBoolOr("RIKUY_TEST_BOOL", false) {
		t.Error("Expected true from env")
	}
	if utilities.EnvBoolOr("RIKUY_TEST_BAD_BOOL", false) {
		t.Error("Expected fallback for unparsable bool")
	}
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	if err := utilities.LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("Expected no error for missing file, got %v", err)
	}
}

func TestMapAndFilter(t *testing.T) {
	doubled := utilities.Map([]int{1, 2, 3}, func(i int) int { return i * 2 })
	if doubled[2] != 6 {
		t.Errorf("Expected 6, got %d", doubled[2])
	}

	even := utilities.Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	if len(even) != 2 || even[0] != 2 {
		t.Errorf("Unexpected filter result %v", even)
	}
}
