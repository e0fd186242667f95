// Package cli provides the command-line interface for the stock alert application.
package cli

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-alert/internal/alert"
	"stock-alert/internal/audit"
	"stock-alert/internal/config"
	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
	"stock-alert/internal/notify"
	"stock-alert/internal/pricing"
	"stock-alert/internal/security"
	"stock-alert/internal/store"
	"stock-alert/internal/watchlist"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-15"
)

// annotationNoConfig marks commands that run without loading configuration.
const annotationNoConfig = "no-config"

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Watchlist *watchlist.Manager

	// Test seams; nil means build from configuration.
	source      pricing.Source
	notifier    notify.Notifier
	clock       alert.Clock
	fixedLogger bool

	closers []io.Closer
}

// Option configures an App.
type Option func(*App)

// WithPriceSource replaces the configured market data provider.
func WithPriceSource(src pricing.Source) Option {
	return func(a *App) { a.source = src }
}

// WithNotifier replaces the email notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithClock replaces the wall clock used for pacing and waits.
func WithClock(c alert.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithFixedLogger keeps logger instead of rebuilding it from configuration.
func WithFixedLogger() Option {
	return func(a *App) { a.fixedLogger = true }
}

// NewApp creates an App that logs to logger until configuration is loaded.
func NewApp(logger zerolog.Logger, opts ...Option) *App {
	app := &App{Logger: logger}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Close releases the store and audit log.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewRootCmd creates the root command for the CLI.
func (a *App) NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockalert",
		Short: "Stock price alerts by email",
		Long: `Stock Alert watches a list of stock symbols and emails you once when a
price reaches your target.

Each symbol has a target price and a direction: "above" alerts when the price
rises to the target or higher, "below" when it falls to the target or lower.
After an alert is sent the symbol is not checked again until you run 'reset'.

Configuration lives in ~/.config/stock-alert (override with --config).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				a.Logger = a.Logger.Level(zerolog.DebugLevel)
			}
			if cmd.Annotations[annotationNoConfig] != "true" {
				if err := a.setup(cmd.Context(), configDir(cmd), debug); err != nil {
					return err
				}
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), logging.WithOperation(a.Logger, cmd.Name())))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-alert)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(a))
	addWatchlistCommands(rootCmd, a)
	addCheckCommands(rootCmd, a)

	return rootCmd
}

func configDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		return config.DefaultConfigDir()
	}
	return dir
}

// setup loads configuration, rebuilds the logger and opens the watchlist.
func (a *App) setup(ctx context.Context, dir string, debug bool) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	if !a.fixedLogger {
		level := cfg.Logging.Level
		if debug {
			level = "debug"
		}
		a.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
			Level:      level,
			Console:    cfg.Logging.Console,
			File:       cfg.Logging.File,
			FilePath:   cfg.Logging.Path,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		})
	}

	if ctx == nil {
		ctx = context.Background()
	}
	s, err := store.Open(ctx, cfg, a.Logger)
	if err != nil {
		return apperrors.Wrap(err, "opening watchlist store")
	}
	a.closers = append(a.closers, s)

	a.Watchlist = watchlist.Open(ctx, s, watchlist.WithLogger(a.Logger))
	a.Logger.Debug().
		Str("config_dir", cfg.Dir).
		Str("backend", cfg.Storage.Backend).
		Int("records", a.Watchlist.Len()).
		Msg("Application initialized")
	return nil
}

// priceSource returns the injected source or builds the configured provider.
func (a *App) priceSource() (pricing.Source, error) {
	if a.source != nil {
		return a.source, nil
	}
	return pricing.New(a.Config, a.Logger)
}

// alertNotifier builds the delivery chain: email with an audit trail, or the
// console for dry runs.
func (a *App) alertNotifier(out io.Writer, dryRun bool) (notify.Notifier, error) {
	if dryRun {
		return notify.NewConsoleNotifier(out), nil
	}

	inner := a.notifier
	if inner == nil {
		inner = notify.NewEmailNotifier(notify.EmailConfig{
			SMTPHost: a.Config.Email.SMTPServer,
			SMTPPort: a.Config.Email.SMTPPort,
			Username: a.Config.Credentials.Email,
			Password: a.Config.Credentials.EmailPassword,
			From:     a.Config.Credentials.Email,
			To:       a.Config.Recipient(),
		})
	}

	auditLog, err := audit.New(audit.Config{
		Path:       a.Config.Audit.Path,
		MaxSize:    a.Config.Audit.MaxSize,
		MaxBackups: a.Config.Audit.MaxBackups,
		MaxAge:     a.Config.Audit.MaxAge,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, auditLog)

	return notify.NewAuditedNotifier(inner, auditLog, a.Logger), nil
}

// newEngine wires the price source and notifier into an evaluation engine.
func (a *App) newEngine(out io.Writer, dryRun bool) (*alert.Engine, error) {
	src, err := a.priceSource()
	if err != nil {
		return nil, err
	}
	n, err := a.alertNotifier(out, dryRun)
	if err != nil {
		return nil, err
	}

	opts := []alert.Option{
		alert.WithPacing(alert.PacingFromConfig(a.Config.Provider)),
		alert.WithLogger(a.Logger),
	}
	if a.clock != nil {
		opts = append(opts, alert.WithClock(a.clock))
	}
	return alert.NewEngine(src, n, opts...), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Stock Alert v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			view := newConfigView(app.Config)
			if output.IsJSON() {
				return output.JSON(view)
			}
			showConfig(output, view)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration directory path",
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := configDir(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration files",
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := config.Load(configDir(cmd)); err != nil {
				if !output.IsJSON() {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

// configView is the displayable form of the configuration.
type configView struct {
	Dir         string                `json:"dir"`
	Provider    config.ProviderConfig `json:"provider"`
	Email       config.EmailConfig    `json:"email"`
	Storage     storageView           `json:"storage"`
	Audit       config.AuditConfig    `json:"audit"`
	Logging     config.LoggingConfig  `json:"logging"`
	Watch       config.WatchConfig    `json:"watch"`
	Credentials map[string]string     `json:"credentials"`
}

type storageView struct {
	Backend     string `json:"backend"`
	Path        string `json:"path"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`
}

func newConfigView(cfg *config.Config) configView {
	return configView{
		Dir:      cfg.Dir,
		Provider: cfg.Provider,
		Email:    cfg.Email,
		Storage: storageView{
			Backend:     cfg.Storage.Backend,
			Path:        cfg.Storage.Path,
			PostgresDSN: security.MaskSensitive(cfg.Storage.PostgresDSN),
		},
		Audit:   cfg.Audit,
		Logging: cfg.Logging,
		Watch:   cfg.Watch,
		Credentials: map[string]string{
			"api_key":        security.MaskCredential(cfg.Credentials.APIKey),
			"email":          cfg.Credentials.Email,
			"email_password": security.MaskCredential(cfg.Credentials.EmailPassword),
		},
	}
}

func showConfig(output *Output, v configView) {
	output.Bold("Provider")
	output.Printf("  Name:             %s\n", v.Provider.Name)
	output.Printf("  Base URL:         %s\n", v.Provider.BaseURL)
	output.Printf("  Timeout:          %s\n", v.Provider.Timeout)
	output.Printf("  Min Interval:     %s\n", v.Provider.MinInterval)
	output.Printf("  Rate Limit Pause: %s\n", v.Provider.RateLimitCooldown)
	output.Println()

	output.Bold("Email")
	output.Printf("  SMTP Server:      %s:%d\n", v.Email.SMTPServer, v.Email.SMTPPort)
	output.Printf("  Sender:           %s\n", v.Credentials["email"])
	recipient := v.Email.To
	if recipient == "" {
		recipient = v.Credentials["email"]
	}
	output.Printf("  Recipient:        %s\n", recipient)
	output.Printf("  Password:         %s\n", v.Credentials["email_password"])
	output.Println()

	output.Bold("Storage")
	output.Printf("  Backend:          %s\n", v.Storage.Backend)
	if v.Storage.PostgresDSN != "" {
		output.Printf("  DSN:              %s\n", v.Storage.PostgresDSN)
	} else {
		output.Printf("  Path:             %s\n", v.Storage.Path)
	}
	output.Printf("  Audit Log:        %s\n", v.Audit.Path)
	output.Printf("  App Log:          %s\n", v.Logging.Path)
	output.Println()

	output.Bold("Credentials")
	output.Printf("  API Key:          %s\n", v.Credentials["api_key"])
	output.Printf("  Config Dir:       %s\n", filepath.Clean(v.Dir))
	output.Printf("  Watch Interval:   %s\n", v.Watch.Interval)
}
