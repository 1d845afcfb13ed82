package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, doc map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal config doc: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_SelectsEnvironmentSection(t *testing.T) {
	path := writeConfigFile(t, map[string]interface{}{
		"development": map[string]interface{}{
			"catalog": map[string]interface{}{"type": "rest", "uri": "http://localhost:9001"},
		},
		"production": map[string]interface{}{
			"catalog": map[string]interface{}{"type": "dynamodb", "uri": "ironlake-catalog"},
		},
	})

	cfg, err := Load(path, Production)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Catalog().Type; got != "dynamodb" {
		t.Errorf("Catalog().Type = %q, want dynamodb", got)
	}
}

func TestLoad_UnknownEnvironment(t *testing.T) {
	path := writeConfigFile(t, map[string]interface{}{
		"development": map[string]interface{}{},
	})

	if _, err := Load(path, Staging); err == nil {
		t.Fatal("expected error for missing environment section, got nil")
	}
}

func TestLoad_SubstitutesEnvVars(t *testing.T) {
	t.Setenv("IRONLAKE_TEST_SECRET", "s3cr3t")
	path := writeConfigFile(t, map[string]interface{}{
		"testing": map[string]interface{}{
			"s3": map[string]interface{}{
				"access_key_id": "${IRONLAKE_TEST_SECRET}",
			},
		},
	})

	cfg, err := Load(path, Testing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.S3().AccessKeyID; got != "s3cr3t" {
		t.Errorf("S3().AccessKeyID = %q, want s3cr3t", got)
	}
}

func TestLoad_MissingEnvVarFailsStartup(t *testing.T) {
	os.Unsetenv("IRONLAKE_TEST_MISSING")
	path := writeConfigFile(t, map[string]interface{}{
		"testing": map[string]interface{}{
			"s3": map[string]interface{}{
				"access_key_id": "${IRONLAKE_TEST_MISSING}",
			},
		},
	})

	if _, err := Load(path, Testing); err == nil {
		t.Fatal("expected error for unset referenced environment variable, got nil")
	}
}

func TestLoadFromEnvironment_RequiresEnvVar(t *testing.T) {
	os.Unsetenv("IRONLAKE_ENV")
	path := writeConfigFile(t, map[string]interface{}{"development": map[string]interface{}{}})

	if _, err := LoadFromEnvironment(path); err == nil {
		t.Fatal("expected error when IRONLAKE_ENV is unset, got nil")
	}
}

func TestLoadFromEnvironment_UsesEnvVar(t *testing.T) {
	t.Setenv("IRONLAKE_ENV", "development")
	path := writeConfigFile(t, map[string]interface{}{
		"development": map[string]interface{}{
			"performance": map[string]interface{}{"max_retries": 7},
		},
	})

	cfg, err := LoadFromEnvironment(path)
	if err != nil {
		t.Fatalf("LoadFromEnvironment: %v", err)
	}
	if got := cfg.Performance().MaxRetries; got != 7 {
		t.Errorf("Performance().MaxRetries = %d, want 7", got)
	}
}

func TestCompaction_Defaults(t *testing.T) {
	path := writeConfigFile(t, map[string]interface{}{
		"development": map[string]interface{}{},
	})
	cfg, err := Load(path, Development)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	comp := cfg.Compaction()
	if comp.OpportunisticCheckInterval != 100 {
		t.Errorf("OpportunisticCheckInterval = %d, want 100", comp.OpportunisticCheckInterval)
	}
	if comp.MinFilesToCompact != 10 {
		t.Errorf("MinFilesToCompact = %d, want 10", comp.MinFilesToCompact)
	}
	if comp.SmallFileThresholdMB != 64 {
		t.Errorf("SmallFileThresholdMB = %d, want 64", comp.SmallFileThresholdMB)
	}
	if comp.MaxFilesPerCompaction != 100 {
		t.Errorf("MaxFilesPerCompaction = %d, want 100", comp.MaxFilesPerCompaction)
	}
}

func TestCompaction_HonorsExplicitValues(t *testing.T) {
	path := writeConfigFile(t, map[string]interface{}{
		"development": map[string]interface{}{
			"iceberg": map[string]interface{}{
				"compaction": map[string]interface{}{
					"enabled":                    true,
					"opportunistic_check_interval": 25,
					"min_files_to_compact":       3,
				},
			},
		},
	})
	cfg, err := Load(path, Development)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	comp := cfg.Compaction()
	if !comp.Enabled {
		t.Error("expected Enabled=true")
	}
	if comp.OpportunisticCheckInterval != 25 {
		t.Errorf("OpportunisticCheckInterval = %d, want 25", comp.OpportunisticCheckInterval)
	}
	if comp.MinFilesToCompact != 3 {
		t.Errorf("MinFilesToCompact = %d, want 3", comp.MinFilesToCompact)
	}
}

func TestPresignTTLSeconds_Default(t *testing.T) {
	path := writeConfigFile(t, map[string]interface{}{"development": map[string]interface{}{}})
	cfg, err := Load(path, Development)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.PresignTTLSeconds(); got != 900 {
		t.Errorf("PresignTTLSeconds() = %d, want 900", got)
	}
}
