package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

// ParseParams decodes the adapter params map. Settings values of any
// scalar type are accepted and kept as strings.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// statements returns the SQL that prepares a fresh connection, in order:
// extensions, settings, then secrets.
func (p *Params) statements() ([]string, error) {
	var stmts []string
	for _, ext := range p.Extensions {
		if !validName(ext) {
			return nil, fmt.Errorf("invalid extension name %q", ext)
		}
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !validName(k) {
			return nil, fmt.Errorf("invalid setting name %q", k)
		}
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, literal(p.Settings[k])))
	}

	for i, s := range p.Secrets {
		stmt, err := s.createStatement(i)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (s SecretConfig) createStatement(i int) (string, error) {
	if !validName(s.Type) {
		return "", fmt.Errorf("secret %d: invalid type %q", i, s.Type)
	}

	opts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		if !validName(s.Provider) {
			return "", fmt.Errorf("secret %d: invalid provider %q", i, s.Provider)
		}
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	for _, kv := range []struct{ key, value string }{
		{"REGION", s.Region},
		{"KEY_ID", s.KeyID},
		{"SECRET", s.Secret},
		{"ENDPOINT", s.Endpoint},
		{"URL_STYLE", s.URLStyle},
	} {
		if kv.value != "" {
			opts = append(opts, kv.key+" "+literal(kv.value))
		}
	}
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}

	switch scope := s.Scope.(type) {
	case nil:
	case string:
		opts = append(opts, "SCOPE "+literal(scope))
	case []any:
		for _, v := range scope {
			str, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("secret %d: scope entries must be strings", i)
			}
			opts = append(opts, "SCOPE "+literal(str))
		}
	case []string:
		for _, str := range scope {
			opts = append(opts, "SCOPE "+literal(str))
		}
	default:
		return "", fmt.Errorf("secret %d: scope must be a string or a list of strings", i)
	}

	return fmt.Sprintf("CREATE OR REPLACE SECRET secret_%d (%s)", i, strings.Join(opts, ", ")), nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
