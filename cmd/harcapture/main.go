package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hmgle/harcapture/internal/config"
	"github.com/hmgle/harcapture/pkg/sdk"
	"github.com/hmgle/harcapture/pkg/transport"
)

// options holds the raw command line flags before they are merged with the
// configuration file
type options struct {
	config       *config.Config
	configFile   string
	masks        []string
	outputFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "harcapture",
		Short: "harcapture - HTTP exchange capture as HAR 1.2",
		Long: `harcapture records the HTTP exchanges handled by a net/http server as
HAR 1.2 documents, masks sensitive query parameters, headers, cookies and
JSON body fields, and delivers the documents asynchronously to an ingest
server, a local file or Redis.

The serve command runs a small demo application behind the capture
middleware so the whole pipeline can be tried out locally.`,
		Version:       sdk.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(), newMaskCmd(), newPathHintCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	opts := &options{config: config.Default()}
	c := opts.config

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Run the demo application behind the capture middleware",
		Long: `Run the demo application behind the capture middleware.

Examples:
  # Write every exchange to a HAR file without an ingest server
  harcapture serve --no-ingest -o captures.har

  # Deliver to an ingest server and mask the Authorization header
  HARCAPTURE_API_KEY=secret harcapture serve --server-url https://ingest.example.com \
    --mask request_header:Authorization

  # Mask JSON fields with explicit replacements
  harcapture serve --no-ingest -o captures.csv --format csv \
    --mask 'request_field_string:password=***' --mask 'request_field_number:pin=0'

  # Publish exchanges to Redis as well
  harcapture serve --no-ingest --redis-addr localhost:6379 --redis-channel captures

Configuration File:
  harcapture reads ~/.config/harcapture/config.yaml when it exists (override
  with --config). Command line flags take precedence over file values.

Endpoints:
  GET  /health          liveness check
  POST /echo            echoes the request body
  GET  /users/{id}      returns a user, customer taken from X-Customer-ID
  POST /login           returns a session token and cookie
  GET  /metrics         Prometheus metrics of the delivery pipeline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := cmd.Flags()

	// Configuration file
	flags.StringVarP(&opts.configFile, "config", "c", config.GetDefaultConfigPath(), "Configuration file")

	// Ingest identity
	flags.StringVar(&c.APIKey, "api-key", "", "Ingest API key (or "+config.APIKeyEnv+")")
	flags.StringVar(&c.APIID, "api-id", c.APIID, "API identifier")
	flags.StringVar(&c.VersionID, "version-id", c.VersionID, "API version identifier")
	flags.StringVar(&c.ServerURL, "server-url", c.ServerURL, "Ingest server URL (or "+config.ServerURLEnv+")")
	flags.BoolVar(&c.NoIngest, "no-ingest", false, "Do not deliver to the ingest server")

	// Demo server
	flags.StringVarP(&c.ListenAddr, "listen", "l", c.ListenAddr, "Address of the demo server")
	flags.IntVar(&c.Port, "port", 0, "Port reported in recorded URLs (default: port of --listen)")

	// Capture settings
	flags.Int64Var(&c.MaxCaptureSize, "max-capture-size", c.MaxCaptureSize, "Bytes of body captured per exchange")
	flags.BoolVar(&c.DecodeContentEncoding, "decode", false, "Decode gzip, deflate and br response bodies")
	flags.BoolVar(&c.SkipUnmatched, "skip-unmatched", false, "Do not record requests that matched no route")
	flags.StringArrayVarP(&opts.masks, "mask", "m", nil, "Mask rule category:field[,field...][=mask[,mask...]] (repeatable)")

	// Delivery
	flags.IntVar(&c.Workers, "workers", c.Workers, "Delivery workers")
	flags.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "Exchanges buffered before new ones are dropped")
	flags.DurationVar(&c.Timeout, "timeout", c.Timeout, "Timeout of one delivery including retries")
	flags.StringVarP(&c.OutputFile, "output", "o", "", "Also write exchanges to file")
	flags.StringVar(&opts.outputFormat, "format", string(c.OutputFormat), "Output format: har, json, csv, text")
	flags.StringVar(&c.RedisAddr, "redis-addr", "", "Redis server address")
	flags.StringVar(&c.RedisPassword, "redis-password", "", "Redis password (or "+config.RedisPasswordEnv+")")
	flags.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number")
	flags.StringVar(&c.RedisList, "redis-list", "", "Redis list receiving exchanges")
	flags.StringVar(&c.RedisChannel, "redis-channel", "", "Redis channel receiving exchanges")

	// Logging
	flags.BoolVarP(&c.Verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVarP(&c.Quiet, "quiet", "q", false, "Only log errors")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")

	return cmd
}

// load merges flags, the configuration file and the environment
func (o *options) load() (*config.Config, error) {
	c := o.config
	c.OutputFormat = config.DefaultOutputFormat
	if o.outputFormat != "" {
		c.OutputFormat = transport.Format(o.outputFormat)
	}

	c.Masks = nil
	for _, raw := range o.masks {
		rule, err := config.ParseMaskRule(raw)
		if err != nil {
			return nil, err
		}
		c.Masks = append(c.Masks, rule)
	}

	fileConfig, err := config.LoadConfigFile(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	c.MergeWithFileConfig(fileConfig)
	c.ApplyEnv()

	if c.Port == 0 {
		port, err := listenPort(c.ListenAddr)
		if err != nil {
			return nil, err
		}
		c.Port = port
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
