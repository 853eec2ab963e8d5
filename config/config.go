// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Wildcard is the allowed_origins value that accepts every origin.
const Wildcard = "*"

// HTTPConfig groups HTTP/HTTPS port, protocol and timeout settings.
type HTTPConfig struct {
	HTTPPort  int  `mapstructure:"http_port"`
	HTTPSPort int  `mapstructure:"https_port"`
	UseHTTPS  bool `mapstructure:"use_https"`

	// Timeouts are parsed separately so they accept "30s", "2m" or plain seconds.
	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// TLSConfig groups manual certificate and Let's Encrypt settings.
type TLSConfig struct {
	CertFile            string `mapstructure:"cert_file"`
	KeyFile             string `mapstructure:"key_file"`
	UseLetsEncrypt      bool   `mapstructure:"use_lets_encrypt"`
	LetsEncryptEmail    string `mapstructure:"lets_encrypt_email"`
	LetsEncryptCacheDir string `mapstructure:"lets_encrypt_cache_dir"`
	Domain              string `mapstructure:"domain"`
}

// SMTPConfig holds the relay the contact form mails through, plus the
// service (From) and owner (To) identities.
type SMTPConfig struct {
	Host      string `mapstructure:"smtp_host"`
	Port      int    `mapstructure:"smtp_port"`
	Username  string `mapstructure:"smtp_username"`
	Password  string `mapstructure:"smtp_password"`
	FromEmail string `mapstructure:"smtp_from_email"`
	FromName  string `mapstructure:"smtp_from_name"`
	ToEmail   string `mapstructure:"smtp_to_email"`
	ToName    string `mapstructure:"smtp_to_name"`

	// TLSPolicy is "mandatory" (STARTTLS required), "opportunistic", "none"
	// or "ssl" (implicit TLS, usually port 465).
	TLSPolicy string `mapstructure:"smtp_tls_policy"`

	Timeout time.Duration `mapstructure:"-"`
}

// RecaptchaConfig enables reCAPTCHA v3 verification when SecretKey is set.
type RecaptchaConfig struct {
	SecretKey string  `mapstructure:"recaptcha_secret_key"`
	SiteKey   string  `mapstructure:"recaptcha_site_key"`
	MinScore  float64 `mapstructure:"recaptcha_min_score"`
	Action    string  `mapstructure:"recaptcha_action"`
	VerifyURL string  `mapstructure:"recaptcha_verify_url"`
}

// Enabled reports whether submissions must carry a valid reCAPTCHA token.
func (r RecaptchaConfig) Enabled() bool {
	return strings.TrimSpace(r.SecretKey) != ""
}

// Config is the complete FormFling configuration. It is built once at
// startup and handed to every component that needs it.
type Config struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	ServiceName string `mapstructure:"service_name"`

	HTTP      HTTPConfig      `mapstructure:",squash"`
	TLS       TLSConfig       `mapstructure:",squash"`
	SMTP      SMTPConfig      `mapstructure:",squash"`
	Recaptcha RecaptchaConfig `mapstructure:",squash"`

	// AllowedOrigins is either []string{"*"} or an explicit list of origins.
	AllowedOrigins []string `mapstructure:"-"`

	EmailTemplate    string `mapstructure:"email_template"`
	TestFormTemplate string `mapstructure:"test_form_template"`
	EnableTestForm   bool   `mapstructure:"enable_test_form"`
	EnableMetrics    bool   `mapstructure:"enable_metrics"`

	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
}

// AllowsAnyOrigin reports whether allowed_origins is the wildcard.
func (c Config) AllowsAnyOrigin() bool {
	return len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == Wildcard
}

// Dump returns a pretty, redacted JSON string of the config for debugging.
// Never logs secrets; use at debug level only.
func (c Config) Dump() string {
	s := c.redactedCopy()
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func (c Config) redactedCopy() Config {
	cp := c
	if cp.SMTP.Password != "" {
		cp.SMTP.Password = "[REDACTED]"
	}
	if cp.Recaptcha.SecretKey != "" {
		cp.Recaptcha.SecretKey = "[REDACTED]"
	}
	return cp
}

// Load merges defaults → config.* file(s) → env vars → explicit flags into one Config.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
//
// Environment variables carry no prefix: smtp_host is read from SMTP_HOST.
// args are the command-line arguments without the program name.
func Load(logger *zap.Logger, args []string) (*Config, error) {
	// 0) Optionally load .env (safe: real env still wins over .env)
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info("Loaded .env file")
	}

	// 1) Define flags (only *explicitly set* flags will override)
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// 2) Viper + env
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind env for all keys so Unmarshal sees them.
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 3) Optional config.* files (yaml|yml|json|toml)
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			if logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("Loaded config file", zap.String("file", file))
		}
	}

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Apply *explicit* flags (highest precedence)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Build struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.AllowedOrigins = parseOrigins(v.Get("allowed_origins"))
	cfg.SMTP.TLSPolicy = strings.ToLower(strings.TrimSpace(cfg.SMTP.TLSPolicy))

	// 7) Durations
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"read_timeout", 15 * time.Second, &cfg.HTTP.ReadTimeout},
		{"read_header_timeout", 5 * time.Second, &cfg.HTTP.ReadHeaderTimeout},
		{"write_timeout", 60 * time.Second, &cfg.HTTP.WriteTimeout},
		{"idle_timeout", 120 * time.Second, &cfg.HTTP.IdleTimeout},
		{"shutdown_timeout", 15 * time.Second, &cfg.HTTP.ShutdownTimeout},
		{"smtp_timeout", 30 * time.Second, &cfg.SMTP.Timeout},
	}
	for _, d := range durations {
		dur, err := parseDurationFlexible(v.Get(d.key), d.def)
		if err != nil && logger != nil {
			logger.Warn("invalid "+d.key+"; using default",
				zap.Any("value", v.Get(d.key)), zap.Duration("default", d.def), zap.Error(err))
		}
		*d.dest = dur
	}

	// 8) Validate
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("formfling", pflag.ContinueOnError)

	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "info", "Log level")
	fs.String("service_name", "formfling-api", "Service name reported by /health")

	fs.Int("http_port", 8080, "HTTP port")
	fs.Int("https_port", 443, "HTTPS port")
	fs.Bool("use_https", false, "Serve HTTPS")
	fs.String("read_timeout", "15s", "HTTP read timeout")
	fs.String("read_header_timeout", "5s", "HTTP read header timeout")
	fs.String("write_timeout", "60s", "HTTP write timeout")
	fs.String("idle_timeout", "120s", "HTTP keep-alive idle timeout")
	fs.String("shutdown_timeout", "15s", "Graceful shutdown window")

	// TLS / Let’s Encrypt
	fs.Bool("use_lets_encrypt", false, "Use Let's Encrypt (http-01)")
	fs.String("lets_encrypt_email", "", "ACME account e-mail")
	fs.String("lets_encrypt_cache_dir", "letsencrypt-cache", "ACME cache dir")
	fs.String("cert_file", "", "TLS cert file (manual TLS)")
	fs.String("key_file", "", "TLS key file  (manual TLS)")
	fs.String("domain", "", "Domain for TLS or ACME")

	// Contact form
	fs.String("allowed_origins", Wildcard, `"*" or comma separated origins, e.g. "https://a.example,https://b.example"`)
	fs.String("email_template", "web/templates/email-template.html", "HTML email template; missing file selects the built-in layout")
	fs.String("test_form_template", "web/templates/test-form.html", "Template for the /test page")
	fs.Bool("enable_test_form", false, "Serve a test form on /test")
	fs.Bool("enable_metrics", false, "Expose Prometheus metrics on /metrics")

	// SMTP
	fs.String("smtp_host", "smtp.gmail.com", "SMTP host")
	fs.Int("smtp_port", 587, "SMTP port")
	fs.String("smtp_username", "", "SMTP username")
	fs.String("smtp_password", "", "SMTP password")
	fs.String("smtp_from_email", "", "Sender address")
	fs.String("smtp_from_name", "FormFling Bot", "Sender display name")
	fs.String("smtp_to_email", "", "Recipient (site owner) address")
	fs.String("smtp_to_name", "Website Owner", "Recipient display name")
	fs.String("smtp_tls_policy", "mandatory", `SMTP TLS policy: "mandatory", "opportunistic", "none" or "ssl"`)
	fs.String("smtp_timeout", "30s", "SMTP dial/send timeout")

	// reCAPTCHA v3
	fs.String("recaptcha_secret_key", "", "reCAPTCHA secret (enables verification)")
	fs.String("recaptcha_site_key", "", "reCAPTCHA site key (test form)")
	fs.Float64("recaptcha_min_score", 0.5, "Minimum accepted reCAPTCHA score")
	fs.String("recaptcha_action", "submit", "Expected reCAPTCHA action (empty disables the check)")
	fs.String("recaptcha_verify_url", "https://www.google.com/recaptcha/api/siteverify", "reCAPTCHA verification endpoint")

	fs.Int64("max_request_body_bytes", 1<<20, "Max HTTP request body size in bytes (0 = unlimited)")
	return fs
}

func allKeys() []string {
	return []string{
		"env", "log_level", "service_name",
		"http_port", "https_port", "use_https",
		"read_timeout", "read_header_timeout", "write_timeout", "idle_timeout", "shutdown_timeout",
		"use_lets_encrypt", "lets_encrypt_email", "lets_encrypt_cache_dir",
		"cert_file", "key_file", "domain",
		"allowed_origins", "email_template", "test_form_template",
		"enable_test_form", "enable_metrics",
		"smtp_host", "smtp_port", "smtp_username", "smtp_password",
		"smtp_from_email", "smtp_from_name", "smtp_to_email", "smtp_to_name",
		"smtp_tls_policy", "smtp_timeout",
		"recaptcha_secret_key", "recaptcha_site_key", "recaptcha_min_score",
		"recaptcha_action", "recaptcha_verify_url",
		"max_request_body_bytes",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "formfling-api")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 443)
	v.SetDefault("use_https", false)
	v.SetDefault("read_timeout", "15s")
	v.SetDefault("read_header_timeout", "5s")
	v.SetDefault("write_timeout", "60s")
	v.SetDefault("idle_timeout", "120s")
	v.SetDefault("shutdown_timeout", "15s")

	v.SetDefault("use_lets_encrypt", false)
	v.SetDefault("lets_encrypt_email", "")
	v.SetDefault("lets_encrypt_cache_dir", "letsencrypt-cache")
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")
	v.SetDefault("domain", "")

	v.SetDefault("allowed_origins", Wildcard)
	v.SetDefault("email_template", "web/templates/email-template.html")
	v.SetDefault("test_form_template", "web/templates/test-form.html")
	v.SetDefault("enable_test_form", false)
	v.SetDefault("enable_metrics", false)

	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from_email", "")
	v.SetDefault("smtp_from_name", "FormFling Bot")
	v.SetDefault("smtp_to_email", "")
	v.SetDefault("smtp_to_name", "Website Owner")
	v.SetDefault("smtp_tls_policy", "mandatory")
	v.SetDefault("smtp_timeout", "30s")

	v.SetDefault("recaptcha_secret_key", "")
	v.SetDefault("recaptcha_site_key", "")
	v.SetDefault("recaptcha_min_score", 0.5)
	v.SetDefault("recaptcha_action", "submit")
	v.SetDefault("recaptcha_verify_url", "https://www.google.com/recaptcha/api/siteverify")

	v.SetDefault("max_request_body_bytes", int64(1<<20))
}

// parseOrigins accepts "*", a comma separated string, or a list from a
// config file. Entries are trimmed and empty ones dropped.
func parseOrigins(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == Wildcard {
			return []string{Wildcard}
		}
		parts = strings.Split(s, ",")
	case []string:
		parts = t
	case []interface{}:
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
	default:
		return []string{Wildcard}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 || (len(out) == 1 && out[0] == Wildcard) {
		return []string{Wildcard}
	}
	return out
}

func validateConfig(cfg Config) error {
	var missing []string
	var invalid []string

	// SMTP identities
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		missing = append(missing, "SMTP_HOST (or --smtp_host)")
	}
	if strings.TrimSpace(cfg.SMTP.FromEmail) == "" {
		missing = append(missing, "SMTP_FROM_EMAIL (or --smtp_from_email)")
	}
	if strings.TrimSpace(cfg.SMTP.ToEmail) == "" {
		missing = append(missing, "SMTP_TO_EMAIL (or --smtp_to_email)")
	}
	if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
		invalid = append(invalid, "smtp_port must be in 1..65535")
	}
	switch cfg.SMTP.TLSPolicy {
	case "mandatory", "opportunistic", "none", "ssl":
	default:
		invalid = append(invalid, `smtp_tls_policy must be "mandatory", "opportunistic", "none" or "ssl"`)
	}

	// Origins: the wildcard cannot be mixed with explicit entries.
	if len(cfg.AllowedOrigins) > 1 {
		for _, o := range cfg.AllowedOrigins {
			if o == Wildcard {
				invalid = append(invalid, `allowed_origins cannot mix "*" with explicit origins`)
				break
			}
		}
	}

	// TLS / ACME consistency
	if cfg.TLS.UseLetsEncrypt && !cfg.HTTP.UseHTTPS {
		invalid = append(invalid, "use_lets_encrypt=true requires use_https=true")
	}
	if cfg.TLS.UseLetsEncrypt && (strings.TrimSpace(cfg.TLS.CertFile) != "" || strings.TrimSpace(cfg.TLS.KeyFile) != "") {
		invalid = append(invalid, "use_lets_encrypt=true cannot be combined with cert_file/key_file")
	}
	if cfg.TLS.UseLetsEncrypt {
		if cfg.HTTP.HTTPPort != 80 {
			invalid = append(invalid, "use_lets_encrypt=true requires http_port=80 for the http-01 challenge")
		}
		if strings.TrimSpace(cfg.TLS.Domain) == "" {
			missing = append(missing, "DOMAIN (or --domain) for Let's Encrypt")
		}
		if strings.TrimSpace(cfg.TLS.LetsEncryptEmail) == "" {
			missing = append(missing, "LETS_ENCRYPT_EMAIL (or --lets_encrypt_email)")
		}
	}
	if cfg.HTTP.UseHTTPS && !cfg.TLS.UseLetsEncrypt {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			missing = append(missing, "CERT_FILE and KEY_FILE (or --cert_file/--key_file) for manual TLS")
		}
	}

	// Port sanity
	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.UseHTTPS {
		if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
			invalid = append(invalid, "https_port must be in 1..65535")
		}
		if cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
			invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
		}
	}

	// reCAPTCHA
	if cfg.Recaptcha.MinScore < 0 || cfg.Recaptcha.MinScore > 1 {
		invalid = append(invalid, "recaptcha_min_score must be in 0..1")
	}
	if cfg.Recaptcha.Enabled() && strings.TrimSpace(cfg.Recaptcha.VerifyURL) == "" {
		missing = append(missing, "RECAPTCHA_VERIFY_URL when recaptcha_secret_key is set")
	}

	if cfg.MaxRequestBodyBytes < 0 {
		invalid = append(invalid, "max_request_body_bytes must be >= 0")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(parts, " | "))
}
