package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/tplcache"
	"github.com/unkn0wn-root/tplcache/config"
	asynchook "github.com/unkn0wn-root/tplcache/hooks/async"
	tlogrus "github.com/unkn0wn-root/tplcache/log/logrus"
	tslog "github.com/unkn0wn-root/tplcache/log/slog"
	tzap "github.com/unkn0wn-root/tplcache/log/zap"
	"github.com/unkn0wn-root/tplcache/setup"
	"github.com/unkn0wn-root/tplcache/sloghooks"
)

type cli struct {
	stdout, stderr io.Writer
	lookupEnv      func(string) (string, bool)

	configPath string
	logLevel   string
	logFormat  string

	log   tplcache.Logger
	hooks tplcache.Hooks
	sync  func()
}

func run(args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	c := &cli{stdout: stdout, stderr: stderr, lookupEnv: lookupEnv}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	c.shutdown()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// shutdown flushes buffered log output and pending hook events.
func (c *cli) shutdown() {
	if c.sync != nil {
		c.sync()
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tplcache",
		Short:         "Manage the compiled template cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setupLogger()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML settings file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "debug|info|warn|error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "zap", "zap|logrus|slog")

	root.AddCommand(c.flushCmd())
	return root
}

func (c *cli) flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Flush all entries from the template cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.flush(cmd.Context())
		},
	}
}

func (c *cli) flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.settings()
	if err != nil {
		return err
	}

	env, err := setup.Build(ctx, s, setup.Deps{Logger: c.log, Hooks: c.hooks})
	if errors.Is(err, tplcache.ErrNotConfigured) {
		return errors.New("template cache is not enabled or no backend is defined")
	}
	if err != nil {
		return fmt.Errorf("failed to flush template cache: %w", err)
	}
	defer env.Close(ctx)

	if err := env.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush template cache: %w", err)
	}
	fmt.Fprintln(c.stdout, "Successfully flushed template cache")
	return nil
}

func (c *cli) settings() (*config.Settings, error) {
	s := &config.Settings{}
	if c.configPath != "" {
		var err error
		if s, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}
	if err := s.ApplyEnv(c.lookupEnv); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *cli) setupLogger() error {
	switch strings.ToLower(c.logFormat) {
	case "zap":
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(c.logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(c.stderr), lvl)
		zl := zap.New(core)
		c.log = tzap.ZapLogger{L: zl}
		c.sync = func() { _ = zl.Sync() }

	case "logrus":
		lvl, err := logrus.ParseLevel(c.logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
		l := logrus.New()
		l.SetOutput(c.stderr)
		l.SetLevel(lvl)
		c.log = tlogrus.New(l)

	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(c.logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q", c.logLevel)
		}
		sl := stdslog.New(stdslog.NewTextHandler(c.stderr, &stdslog.HandlerOptions{Level: lvl}))
		c.log = tslog.Logger{L: sl}
		hooks := asynchook.New(sloghooks.New(sl, sloghooks.Options{ExpiredEvery: 100, KeyWarningEvery: 100}), 1, 1024)
		c.hooks = hooks
		c.sync = hooks.Close

	default:
		return fmt.Errorf("invalid --log-format %q", c.logFormat)
	}
	return nil
}
