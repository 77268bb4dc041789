package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"retrospec/internal/config"
	"retrospec/internal/engine"
	"retrospec/internal/errors"
	"retrospec/internal/metrics"
	"retrospec/internal/paths"
	"retrospec/internal/slogutil"
)

// session is everything a command needs to talk to one project.
type session struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Registry
	engine  *engine.Engine

	closers []io.Closer
}

// getRepoRoot returns --root or the working directory.
func getRepoRoot() (string, error) {
	if rootFlag != "" {
		return rootFlag, nil
	}
	return os.Getwd()
}

// loadConfig reads the config named by --config, a positional argument, or
// the default location.
func loadConfig(root, explicit string) (*config.Config, error) {
	if explicit == "" {
		explicit = configFlag
	}
	cfg, err := config.Load(root, explicit)
	if err != nil {
		var notFound *config.NotFoundError
		if stderrors.As(err, &notFound) {
			return nil, errors.New(errors.ConfigNotFound, fmt.Sprintf("config file %s does not exist", notFound.Path), nil)
		}
		return nil, errors.New(errors.ConfigInvalid, "load config", err)
	}
	return cfg, nil
}

// logLevel applies -v/-q over logging.level; without either the config
// decides, and warn is the default.
func logLevel(cfg *config.Config) slog.Level {
	if verbosityFlag > 0 || quietFlag || cfg == nil || cfg.Logging.Level == "" {
		return slogutil.LevelFromVerbosity(verbosityFlag, quietFlag)
	}
	return slogutil.LevelFromString(cfg.Logging.Level)
}

// newLogger writes to stderr and, when logging.file is set, to a rotating
// log file as well. The returned closer releases the file.
func newLogger(root string, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level := logLevel(cfg)
	format := slogutil.FormatText
	if cfg != nil && cfg.Logging.Format != "" {
		f, err := slogutil.ParseFormat(cfg.Logging.Format)
		if err != nil {
			return nil, nil, errors.New(errors.ConfigInvalid, "logging.format", err)
		}
		format = f
	}
	stderr := slogutil.NewHandlerFor(os.Stderr, level, format)

	if cfg == nil || cfg.Logging.File == "" {
		return slog.New(stderr), nil, nil
	}

	path := paths.LogPath(root, cfg.Logging.File)
	file, err := slogutil.OpenLogFile(path, cfg.Logging.MaxSize, cfg.Logging.MaxBackups)
	if err != nil {
		return nil, nil, errors.New(errors.ConfigInvalid, fmt.Sprintf("logging.file: %s", path), err)
	}
	// The file always gets info and above, whatever the console shows.
	fileLevel := min(level, slog.LevelInfo)
	return slogutil.NewTeeLogger(stderr, slogutil.NewHandlerFor(file, fileLevel, format)), file, nil
}

// openSession loads config and builds the engine. explicitConfig overrides
// --config (used by `run [config]`).
func openSession(cmd *cobra.Command, explicitConfig string) (*session, error) {
	root, err := getRepoRoot()
	if err != nil {
		return nil, errors.New(errors.InternalError, "get working directory", err)
	}

	cfg, err := loadConfig(root, explicitConfig)
	if err != nil {
		return nil, err
	}

	logger, closer, err := newLogger(root, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{root: root, cfg: cfg, logger: logger, metrics: metrics.New()}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	if cfg.File() != "" {
		logger.Debug("loaded config", "path", cfg.File())
	}

	s.engine, err = engine.New(cfg, root, engine.Options{
		Logger:  logger,
		Metrics: s.metrics,
		Stdout:  cmd.OutOrStdout(),
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.engine)
	return s, nil
}

// Close writes --metrics-file and releases the engine and log file.
func (s *session) Close() {
	if metricsFileFlag != "" {
		if err := s.metrics.WriteTextfile(metricsFileFlag); err != nil {
			s.logger.Warn("could not write metrics file", "path", metricsFileFlag, "error", err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

// newContext is cancelled on SIGINT or SIGTERM so a running test process is
// stopped before retrospec exits.
func newContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// printError writes err and any suggested fixes.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var re *errors.RetrospecError
	if stderrors.As(err, &re) && len(re.SuggestedFixes) > 0 {
		fmt.Fprintln(w, "\nSuggested fixes:")
		for _, fix := range re.SuggestedFixes {
			switch {
			case fix.Command != "":
				fmt.Fprintf(w, "  - %s: %s\n", fix.Description, fix.Command)
			case fix.Field != "":
				fmt.Fprintf(w, "  - %s (%s)\n", fix.Description, fix.Field)
			default:
				fmt.Fprintf(w, "  - %s\n", fix.Description)
			}
		}
	}
}

