package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hmgle/harcapture/pkg/capture"
	"github.com/hmgle/harcapture/pkg/har"
	"github.com/hmgle/harcapture/pkg/logger"
	"github.com/hmgle/harcapture/pkg/masking"
	"github.com/hmgle/harcapture/pkg/sdk"
	"github.com/hmgle/harcapture/pkg/transport"
)

const (
	DefaultAPIID        = "default"
	DefaultVersionID    = "latest"
	DefaultListenAddr   = ":8080"
	DefaultServerURL    = "http://localhost:8035"
	DefaultOutputFormat = transport.FormatHAR
	DefaultTimeout      = 10 * time.Second

	// ServerURLEnv overrides the ingest server URL
	ServerURLEnv = "HARCAPTURE_SERVER_URL"
	// APIKeyEnv supplies the API key when no flag or file sets it
	APIKeyEnv = "HARCAPTURE_API_KEY"
	// RedisPasswordEnv supplies the Redis password when no flag or file sets it
	RedisPasswordEnv = "HARCAPTURE_REDIS_PASSWORD"
)

// MaskRule is one masking directive as written in a configuration file
type MaskRule struct {
	Category string   `yaml:"category"`
	Fields   []string `yaml:"fields"`
	Masks    []string `yaml:"masks,omitempty"`
}

// Config holds the application configuration
type Config struct {
	// Ingest identity
	APIKey    string
	APIID     string
	VersionID string
	ServerURL string
	NoIngest  bool // Do not deliver to the ingest server

	// Demo server
	ListenAddr string
	Port       int // Port reported in recorded URLs, 0 = taken from ListenAddr

	// Capture settings
	MaxCaptureSize        int64
	DecodeContentEncoding bool
	SkipUnmatched         bool
	Masks                 []MaskRule

	// Delivery
	Workers       int
	QueueSize     int
	Timeout       time.Duration
	OutputFile    string           // File to save captured exchanges
	OutputFormat  transport.Format // Output format (har, json, csv, text)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisList     string
	RedisChannel  string

	// Logging
	Verbose  bool
	Quiet    bool
	LogLevel string
}

// FileConfig represents the configuration file structure with YAML tags
type FileConfig struct {
	APIKey    *string `yaml:"api_key,omitempty"`
	APIID     *string `yaml:"api_id,omitempty"`
	VersionID *string `yaml:"version_id,omitempty"`
	ServerURL *string `yaml:"server_url,omitempty"`
	NoIngest  *bool   `yaml:"no_ingest,omitempty"`

	ListenAddr *string `yaml:"listen_addr,omitempty"`
	Port       *int    `yaml:"port,omitempty"`

	MaxCaptureSize        *int64      `yaml:"max_capture_size,omitempty"`
	DecodeContentEncoding *bool       `yaml:"decode_content_encoding,omitempty"`
	SkipUnmatched         *bool       `yaml:"skip_unmatched,omitempty"`
	Masks                 *[]MaskRule `yaml:"masks,omitempty"`

	Workers       *int           `yaml:"workers,omitempty"`
	QueueSize     *int           `yaml:"queue_size,omitempty"`
	Timeout       *time.Duration `yaml:"timeout,omitempty"`
	OutputFile    *string        `yaml:"output_file,omitempty"`
	OutputFormat  *string        `yaml:"output_format,omitempty"`
	RedisAddr     *string        `yaml:"redis_addr,omitempty"`
	RedisPassword *string        `yaml:"redis_password,omitempty"`
	RedisDB       *int           `yaml:"redis_db,omitempty"`
	RedisList     *string        `yaml:"redis_list,omitempty"`
	RedisChannel  *string        `yaml:"redis_channel,omitempty"`

	Verbose  *bool   `yaml:"verbose,omitempty"`
	Quiet    *bool   `yaml:"quiet,omitempty"`
	LogLevel *string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when neither flags nor a file set
// a value
func Default() *Config {
	return &Config{
		APIID:          DefaultAPIID,
		VersionID:      DefaultVersionID,
		ServerURL:      DefaultServerURL,
		ListenAddr:     DefaultListenAddr,
		MaxCaptureSize: capture.DefaultMaxCaptureSize,
		Workers:        transport.DefaultWorkers,
		QueueSize:      transport.DefaultQueueSize,
		Timeout:        DefaultTimeout,
		OutputFormat:   DefaultOutputFormat,
		LogLevel:       "info",
	}
}

// GetConfigDir returns the configuration directory, honouring XDG_CONFIG_HOME
func GetConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "harcapture")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "harcapture")
	}

	return ".harcapture"
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// LoadConfigFile loads configuration from a YAML file. A missing or empty
// file yields an empty configuration.
func LoadConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var config FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &config, nil
}

// MergeWithFileConfig merges file configuration with CLI configuration
// CLI parameters take precedence over file configuration
func (c *Config) MergeWithFileConfig(fileConfig *FileConfig) {
	def := Default()

	if fileConfig.APIKey != nil && c.APIKey == "" {
		c.APIKey = *fileConfig.APIKey
	}
	if fileConfig.APIID != nil && c.APIID == def.APIID {
		c.APIID = *fileConfig.APIID
	}
	if fileConfig.VersionID != nil && c.VersionID == def.VersionID {
		c.VersionID = *fileConfig.VersionID
	}
	if fileConfig.ServerURL != nil && c.ServerURL == def.ServerURL {
		c.ServerURL = *fileConfig.ServerURL
	}
	if fileConfig.NoIngest != nil && !c.NoIngest {
		c.NoIngest = *fileConfig.NoIngest
	}

	if fileConfig.ListenAddr != nil && c.ListenAddr == def.ListenAddr {
		c.ListenAddr = *fileConfig.ListenAddr
	}
	if fileConfig.Port != nil && c.Port == 0 {
		c.Port = *fileConfig.Port
	}

	if fileConfig.MaxCaptureSize != nil && c.MaxCaptureSize == def.MaxCaptureSize {
		c.MaxCaptureSize = *fileConfig.MaxCaptureSize
	}
	if fileConfig.DecodeContentEncoding != nil && !c.DecodeContentEncoding {
		c.DecodeContentEncoding = *fileConfig.DecodeContentEncoding
	}
	if fileConfig.SkipUnmatched != nil && !c.SkipUnmatched {
		c.SkipUnmatched = *fileConfig.SkipUnmatched
	}
	if fileConfig.Masks != nil {
		// file rules come first so rules given on the command line win
		c.Masks = append(append([]MaskRule{}, *fileConfig.Masks...), c.Masks...)
	}

	if fileConfig.Workers != nil && c.Workers == def.Workers {
		c.Workers = *fileConfig.Workers
	}
	if fileConfig.QueueSize != nil && c.QueueSize == def.QueueSize {
		c.QueueSize = *fileConfig.QueueSize
	}
	if fileConfig.Timeout != nil && c.Timeout == def.Timeout {
		c.Timeout = *fileConfig.Timeout
	}
	if fileConfig.OutputFile != nil && c.OutputFile == "" {
		c.OutputFile = *fileConfig.OutputFile
	}
	if fileConfig.OutputFormat != nil && c.OutputFormat == def.OutputFormat {
		c.OutputFormat = transport.Format(*fileConfig.OutputFormat)
	}
	if fileConfig.RedisAddr != nil && c.RedisAddr == "" {
		c.RedisAddr = *fileConfig.RedisAddr
	}
	if fileConfig.RedisPassword != nil && c.RedisPassword == "" {
		c.RedisPassword = *fileConfig.RedisPassword
	}
	if fileConfig.RedisDB != nil && c.RedisDB == 0 {
		c.RedisDB = *fileConfig.RedisDB
	}
	if fileConfig.RedisList != nil && c.RedisList == "" {
		c.RedisList = *fileConfig.RedisList
	}
	if fileConfig.RedisChannel != nil && c.RedisChannel == "" {
		c.RedisChannel = *fileConfig.RedisChannel
	}

	if fileConfig.Verbose != nil && !c.Verbose {
		c.Verbose = *fileConfig.Verbose
	}
	if fileConfig.Quiet != nil && !c.Quiet {
		c.Quiet = *fileConfig.Quiet
	}
	if fileConfig.LogLevel != nil && c.LogLevel == def.LogLevel {
		c.LogLevel = *fileConfig.LogLevel
	}
}

// ApplyEnv fills values from the environment that neither flags nor the file set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(ServerURLEnv); v != "" && c.ServerURL == DefaultServerURL {
		c.ServerURL = v
	}
	if v := os.Getenv(APIKeyEnv); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv(RedisPasswordEnv); v != "" && c.RedisPassword == "" {
		c.RedisPassword = v
	}
}

// IngestEnabled reports whether exchanges are delivered to the ingest server
func (c *Config) IngestEnabled() bool {
	return !c.NoIngest
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	if c.IngestEnabled() && c.APIKey == "" {
		return fmt.Errorf("%w (set --api-key, %s or disable ingest with --no-ingest)", sdk.ErrMissingAPIKey, APIKeyEnv)
	}
	if c.MaxCaptureSize < 0 {
		return fmt.Errorf("invalid max capture size: %d", c.MaxCaptureSize)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", c.Port)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid queue size: %d", c.QueueSize)
	}
	if c.OutputFile != "" {
		if _, err := transport.ParseFormat(string(c.OutputFormat)); err != nil {
			return err
		}
	}
	if (c.RedisList != "" || c.RedisChannel != "") && c.RedisAddr == "" {
		return errors.New("redis list or channel given without --redis-addr")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis database: %d", c.RedisDB)
	}
	if c.RedisAddr != "" && c.RedisList == "" && c.RedisChannel == "" {
		return errors.New("--redis-addr needs --redis-list or --redis-channel")
	}
	if c.Verbose && c.Quiet {
		return errors.New("verbose and quiet modes are mutually exclusive")
	}
	if _, err := c.Directives(); err != nil {
		return err
	}
	return nil
}

// Directives converts the mask rules into masking directives
func (c *Config) Directives() ([]masking.Directive, error) {
	directives := make([]masking.Directive, 0, len(c.Masks))
	for i, rule := range c.Masks {
		cat, err := masking.ParseCategory(rule.Category)
		if err != nil {
			return nil, fmt.Errorf("mask rule %d: %w", i+1, err)
		}
		if len(rule.Fields) == 0 {
			return nil, fmt.Errorf("mask rule %d: no fields given", i+1)
		}
		directives = append(directives, masking.Directive{Category: cat, Fields: rule.Fields, Masks: rule.Masks})
	}
	return directives, nil
}

// NewLogger creates the application logger
func (c *Config) NewLogger(w io.Writer) *logger.StandardLogger {
	level := logger.ParseLevel(c.LogLevel)
	switch {
	case c.Quiet:
		level = logger.LevelError
	case c.Verbose:
		level = logger.LevelDebug
	}
	return logger.NewWithWriter(w, level)
}

// SDKConfig builds the configuration of the capture middleware
func (c *Config) SDKConfig(sender transport.Sender, log logger.Logger) (sdk.Config, error) {
	directives, err := c.Directives()
	if err != nil {
		return sdk.Config{}, err
	}
	// the key is only ever sent to the ingest server
	apiKey := c.APIKey
	if apiKey == "" && !c.IngestEnabled() {
		apiKey = "none"
	}
	return sdk.Config{
		APIKey:                apiKey,
		APIID:                 c.APIID,
		VersionID:             c.VersionID,
		Port:                  c.Port,
		MaxCaptureSize:        c.MaxCaptureSize,
		Clock:                 har.SystemClock{},
		Sender:                sender,
		Logger:                log,
		DefaultMasks:          directives,
		DecodeContentEncoding: c.DecodeContentEncoding,
		SkipUnmatched:         c.SkipUnmatched,
	}, nil
}

// HTTPSinkConfig builds the configuration of the ingest client
func (c *Config) HTTPSinkConfig() transport.HTTPSinkConfig {
	return transport.HTTPSinkConfig{
		ServerURL: c.ServerURL,
		APIKey:    c.APIKey,
		APIID:     c.APIID,
		VersionID: c.VersionID,
	}
}

// RedisSinkConfig builds the configuration of the Redis sink
func (c *Config) RedisSinkConfig() transport.RedisSinkConfig {
	return transport.RedisSinkConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		List:     c.RedisList,
		Channel:  c.RedisChannel,
	}
}

// ParseMaskRule parses a rule given on the command line in the form
// category:field[,field...][=mask[,mask...]]
func ParseMaskRule(s string) (MaskRule, error) {
	category, rest, ok := strings.Cut(s, ":")
	if !ok || category == "" || rest == "" {
		return MaskRule{}, fmt.Errorf("invalid mask rule %q (want category:field[,field...][=mask[,mask...]])", s)
	}
	if _, err := masking.ParseCategory(category); err != nil {
		return MaskRule{}, err
	}

	fields, masks, _ := strings.Cut(rest, "=")
	rule := MaskRule{Category: category, Fields: splitList(fields)}
	if len(rule.Fields) == 0 {
		return MaskRule{}, fmt.Errorf("invalid mask rule %q: no fields given", s)
	}
	if masks != "" {
		rule.Masks = strings.Split(masks, ",")
	}
	return rule, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
