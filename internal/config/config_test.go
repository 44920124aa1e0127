package config

import (
	"os"
	"testing"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("MAPPER_CONFIG_PATH", "/nonexistent/mapper.yaml")
	t.Setenv("MAPPER_DAO_CATEGORY_FILTERS", `{"uniswap":[1,2]}`)
	t.Setenv("SEMANTIC_SIMILARITY_THRESHOLD", "0.77")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://test" {
		t.Fatalf("unexpected database url: %s", cfg.DatabaseURL)
	}
	if len(cfg.DaoCategoryFilters["uniswap"]) != 2 {
		t.Fatalf("expected category filter for uniswap, got %v", cfg.DaoCategoryFilters)
	}
	if cfg.SemanticSimilarityThreshold != 0.77 {
		t.Fatalf("expected threshold 0.77, got %f", cfg.SemanticSimilarityThreshold)
	}
}

func TestLoadDefaultsHealthPort(t *testing.T) {
	t.Setenv("MAPPER_CONFIG_PATH", "/nonexistent/mapper.yaml")
	os.Unsetenv("HEALTH_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HealthPort != 8080 {
		t.Fatalf("expected default health port 8080, got %d", cfg.HealthPort)
	}
}
