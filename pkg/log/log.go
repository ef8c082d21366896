package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level Level
	// JSONOutput selects newline-delimited JSON records over the
	// human-readable console writer; operators running ridgeline as a
	// systemd unit or under a log-shipping agent want JSON, a developer
	// at a terminal wants the console format.
	JSONOutput bool
	Output     io.Writer
	// SampleEvery, when > 1, only emits every Nth log record at
	// InfoLevel once the threshold is crossed; a busy leader pushing
	// hundreds of commits a second doesn't need one line each. Errors
	// and warnings are never sampled.
	SampleEvery uint32
}

// Init initializes the global logger
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var base zerolog.Logger
	if cfg.JSONOutput {
		base = zerolog.New(output).With().Timestamp().Logger()
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	if cfg.SampleEvery > 1 {
		sampler := &zerolog.BurstSampler{
			Burst:  1,
			Period: time.Second,
			NextSampler: &zerolog.BasicSampler{
				N: cfg.SampleEvery,
			},
		}
		base = base.Sample(zerolog.LevelSampler{InfoSampler: sampler})
	}

	Logger = base
}

// WithComponent creates a child logger tagged with the subsystem name
// (executor, commit, mirror, watch, ...) emitting the log line.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithProject creates a child logger scoped to a project.
func WithProject(project string) zerolog.Logger {
	return Logger.With().Str("project", project).Logger()
}

// WithRepository creates a child logger scoped to a project and repository
// pair — the two coordinates that identify a revision log.
func WithRepository(project, repo string) zerolog.Logger {
	return Logger.With().Str("project", project).Str("repo", repo).Logger()
}

// WithRevision creates a child logger carrying a commit revision number.
func WithRevision(rev int64) zerolog.Logger {
	return Logger.With().Int64("revision", rev).Logger()
}

// WithCommit creates a child logger scoped to project, repository, revision,
// and the author attributed to the commit — the full coordinate set the
// commit engine logs against a successful push or transform.
func WithCommit(project, repo string, rev int64, author string) zerolog.Logger {
	return Logger.With().
		Str("project", project).
		Str("repo", repo).
		Int64("revision", rev).
		Str("author", author).
		Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}

// Writer adapts a component's logger into a plain io.Writer, one record per
// line, at InfoLevel. It exists for third-party libraries — hashicorp/raft's
// Config.LogOutput chief among them — that only accept a writer rather than
// a structured logger.
func Writer(component string) io.Writer {
	return writerAdapter{logger: WithComponent(component)}
}

type writerAdapter struct {
	logger zerolog.Logger
}

func (w writerAdapter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line != "" {
		w.logger.Info().Msg(line)
	}
	return len(p), nil
}
