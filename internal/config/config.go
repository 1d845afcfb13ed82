package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Environment is one of the four sections a config.json document may
// carry; IRONLAKE_ENV selects which one is active for the process.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Testing     Environment = "testing"
)

// Config is the environment-scoped configuration document: the selected
// section of config.json, with ${VAR} references substituted and viper
// layered on top for IRONLAKE_-prefixed environment-variable overrides.
type Config struct {
	Environment Environment
	section     map[string]interface{}
	v           *viper.Viper
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// Load reads path (a JSON document with one top-level key per Environment),
// substitutes ${VAR} references from the process environment, and layers
// viper's IRONLAKE_-prefixed environment-variable overrides on top —
// matching original_source/src/config.py's substitution and the teacher's
// own viper-based override precedence.
func Load(path string, env Environment) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	sectionRaw, ok := all[string(env)]
	if !ok {
		avail := make([]string, 0, len(all))
		for k := range all {
			avail = append(avail, k)
		}
		return nil, fmt.Errorf("config: environment %q not found in %s (available: %s)", env, path, strings.Join(avail, ", "))
	}

	var section map[string]interface{}
	if err := json.Unmarshal(sectionRaw, &section); err != nil {
		return nil, fmt.Errorf("config: parse %s section: %w", env, err)
	}
	substituted, err := substituteEnvVars(section, string(env))
	if err != nil {
		return nil, err
	}
	section = substituted.(map[string]interface{})

	v := viper.New()
	v.SetEnvPrefix("IRONLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.MergeConfigMap(section); err != nil {
		return nil, fmt.Errorf("config: merge %s section: %w", env, err)
	}

	return &Config{Environment: env, section: section, v: v}, nil
}

// LoadFromEnvironment reads IRONLAKE_ENV to select the section (defaulting
// to none — an unset IRONLAKE_ENV is a startup failure, per the original
// config loader's refusal to guess an environment).
func LoadFromEnvironment(path string) (*Config, error) {
	env := os.Getenv("IRONLAKE_ENV")
	if env == "" {
		return nil, fmt.Errorf("config: IRONLAKE_ENV not set; must be one of development, staging, production, testing")
	}
	return Load(path, Environment(env))
}

// substituteEnvVars recursively replaces every ${VAR_NAME} occurrence in
// string values with the named environment variable, failing startup if
// any referenced variable is unset — exactly original_source/src/
// config.py#_substitute_env_vars's behavior.
func substituteEnvVars(obj interface{}, env string) (interface{}, error) {
	switch v := obj.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			sub, err := substituteEnvVars(val, env)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			sub, err := substituteEnvVars(val, env)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	case string:
		var substErr error
		result := envVarPattern.ReplaceAllStringFunc(v, func(match string) string {
			name := envVarPattern.FindStringSubmatch(match)[1]
			value, ok := os.LookupEnv(name)
			if !ok {
				substErr = fmt.Errorf("config: environment variable %q not set, required by environment %q", name, env)
				return match
			}
			return value
		})
		if substErr != nil {
			return nil, substErr
		}
		return result, nil
	default:
		return obj, nil
	}
}

// Get returns the raw value at the given nested key path (e.g.
// Get("s3", "bucket_name")), or nil if absent.
func (c *Config) Get(keys ...string) interface{} {
	return c.v.Get(strings.Join(keys, "."))
}

// GetString, GetInt, and GetBool are typed convenience accessors over Get.
func (c *Config) GetString(keys ...string) string { return c.v.GetString(strings.Join(keys, ".")) }
func (c *Config) GetInt(keys ...string) int        { return c.v.GetInt(strings.Join(keys, ".")) }
func (c *Config) GetBool(keys ...string) bool       { return c.v.GetBool(strings.Join(keys, ".")) }

// S3 is the object-storage section: bucket/region/endpoint addressing plus
// optional static credentials, backing internal/storageio.Config.
type S3 struct {
	Provider        string
	BucketName      string
	Region          string
	Endpoint        string
	UseSSL          bool
	PathStyleAccess bool
	AccessKeyID     string
	SecretAccessKey string
	WarehousePath   string
}

func (c *Config) S3() S3 {
	return S3{
		Provider:        c.GetString("s3", "provider"),
		BucketName:      c.GetString("s3", "bucket_name"),
		Region:          c.GetString("s3", "region"),
		Endpoint:        c.GetString("s3", "endpoint"),
		UseSSL:          c.v.GetBool("s3.use_ssl"),
		PathStyleAccess: c.v.GetBool("s3.path_style_access"),
		AccessKeyID:     c.GetString("s3", "access_key_id"),
		SecretAccessKey: c.GetString("s3", "secret_access_key"),
		WarehousePath:   c.GetString("s3", "warehouse_path"),
	}
}

// Catalog is the metastore addressing section.
type Catalog struct {
	Type   string
	URI    string
	Region string
	Name   string
}

func (c *Config) Catalog() Catalog {
	return Catalog{
		Type:   c.GetString("catalog", "type"),
		URI:    c.GetString("catalog", "uri"),
		Region: c.GetString("catalog", "region"),
		Name:   c.GetString("catalog", "name"),
	}
}

// Performance holds retry/timeout limits, defaulting per spec when absent.
type Performance struct {
	MaxRetries    int
	QueryTimeoutMs int
}

func (c *Config) Performance() Performance {
	p := Performance{
		MaxRetries:     c.GetInt("performance", "max_retries"),
		QueryTimeoutMs: c.GetInt("performance", "query_timeout_ms"),
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.QueryTimeoutMs == 0 {
		p.QueryTimeoutMs = 30000
	}
	return p
}

// Compaction mirrors the iceberg.compaction.* keys, defaulting per spec.
type Compaction struct {
	Enabled                    bool
	OpportunisticCheckInterval int
	SmallFileThresholdMB       int
	MinFilesToCompact          int
	MaxFilesPerCompaction      int
}

func (c *Config) Compaction() Compaction {
	comp := Compaction{
		Enabled:                    c.v.GetBool("iceberg.compaction.enabled"),
		OpportunisticCheckInterval: c.GetInt("iceberg", "compaction", "opportunistic_check_interval"),
		SmallFileThresholdMB:       c.GetInt("iceberg", "compaction", "small_file_threshold_mb"),
		MinFilesToCompact:          c.GetInt("iceberg", "compaction", "min_files_to_compact"),
		MaxFilesPerCompaction:      c.GetInt("iceberg", "compaction", "max_files_per_compaction"),
	}
	if comp.OpportunisticCheckInterval == 0 {
		comp.OpportunisticCheckInterval = 100
	}
	if comp.SmallFileThresholdMB == 0 {
		comp.SmallFileThresholdMB = 64
	}
	if comp.MinFilesToCompact == 0 {
		comp.MinFilesToCompact = 10
	}
	if comp.MaxFilesPerCompaction == 0 {
		comp.MaxFilesPerCompaction = 100
	}
	return comp
}

// PresignTTLSeconds returns storage.presign_ttl_seconds, the
// GET_UPLOAD_URL/GET_DOWNLOAD_URL presign TTL, defaulting to 900 when the
// key is unset or not positive.
func (c *Config) PresignTTLSeconds() int {
	if v := c.GetInt("storage", "presign_ttl_seconds"); v > 0 {
		return v
	}
	return 900
}

// OTLPEndpoint is empty when telemetry should use the stdout exporter.
func (c *Config) OTLPEndpoint() string {
	return c.GetString("telemetry", "otlp_endpoint")
}
