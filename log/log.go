package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       atomic.Bool
	level          = zerolog.InfoLevel
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: HARK_LOG_PATH environment variable
	if envPath := os.Getenv("HARK_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetLevel accepts debug, info, warn or error. It may be called before or
// after Init.
func SetLevel(name string) error {
	l, err := zerolog.ParseLevel(name)
	if err != nil || l > zerolog.ErrorLevel || l < zerolog.DebugLevel {
		return fmt.Errorf("unknown log level %q", name)
	}
	logMu.Lock()
	level = l
	if logReady.Load() {
		diagLog = diagLog.Level(l)
	}
	logMu.Unlock()
	return nil
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(zerolog.SyncWriter(consoleWriter)).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
}

// logger returns the diagnostics logger, or nil before Init.
func logger() *zerolog.Logger {
	if !logReady.Load() {
		return nil
	}
	logMu.Lock()
	defer logMu.Unlock()
	l := diagLog
	return &l
}

func Info(msg string) {
	if l := logger(); l != nil {
		l.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if l := logger(); l != nil {
		l.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if l := logger(); l != nil {
		l.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if l := logger(); l != nil {
		l.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if l := logger(); l != nil {
		l.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if l := logger(); l != nil {
		l.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if l := logger(); l != nil {
		l.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Chunk records a captured phrase and whether the gates let it through.
func Chunk(seq uint64, samples int, kept bool) {
	if l := logger(); l != nil {
		l.Debug().
			Uint64("seq", seq).
			Int("samples", samples).
			Bool("kept", kept).
			Msg("chunk")
	}
}

// Transcribed records one engine call.
func Transcribed(seq uint64, engine string, elapsed time.Duration, chars int, net string) {
	if l := logger(); l != nil {
		ev := l.Info().
			Uint64("seq", seq).
			Str("engine", engine).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Int("chars", chars)
		if net != "" {
			ev = ev.Str("net", net)
		}
		ev.Msg("transcription")
	}
}

// Routed records where a result went: "remote" or "local".
func Routed(dest string, sessions int, seq uint64) {
	if l := logger(); l != nil {
		l.Debug().
			Str("dest", dest).
			Int("sessions", sessions).
			Uint64("seq", seq).
			Msg("routed")
	}
}

func SessionEvent(event, id string, live int) {
	if l := logger(); l != nil {
		l.Info().
			Str("session", id).
			Int("live", live).
			Msg(event)
	}
}

func Gate(local, remote bool) {
	if l := logger(); l != nil {
		l.Info().
			Bool("local", local).
			Bool("remote", remote).
			Bool("effective", local || remote).
			Msg("gates")
	}
}

func TranscriptionText(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(engine, keyMode, device string) {
	if l := logger(); l != nil {
		l.Info().
			Str("engine", engine).
			Str("key_mode", keyMode).
			Str("device", device).
			Msg("session_start")
	}
}

func SessionEnd(count int) {
	if l := logger(); l != nil {
		l.Info().
			Int("count", count).
			Msg("session_end")
	}
}
