// Package observability sets up the process logger.
package observability

import (
    "os"
    "path/filepath"
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "commitcast/pkg/config"
)

// SetupLogger builds a zap.Logger from the provided configuration, sets it as
// the global logger and redirects the stdlib log package. fields are attached
// to every entry. The caller should defer logger.Sync().
func SetupLogger(c config.LogConfig, fields ...zap.Field) (*zap.Logger, error) {
    level, err := zap.ParseAtomicLevel(normalizeLevel(c.Level))
    if err != nil { level = zap.NewAtomicLevelAt(zap.InfoLevel) }

    encoder := newEncoder(c)
    outputs := c.Outputs
    if len(outputs) == 0 { outputs = []string{"stdout"} }
    cores := make([]zapcore.Core, 0, len(outputs))
    for _, out := range outputs {
        cores = append(cores, zapcore.NewCore(encoder, sinkFor(out, c), level))
    }

    opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
    if c.Development { opts = append(opts, zap.Development()) }
    if len(fields) > 0 { opts = append(opts, zap.Fields(fields...)) }

    logger := zap.New(zapcore.NewTee(cores...), opts...)
    zap.ReplaceGlobals(logger)
    // memberlist and net/http log through the stdlib logger
    _, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
    return logger, nil
}

func normalizeLevel(l string) string {
    l = strings.ToLower(strings.TrimSpace(l))
    if l == "warning" { return "warn" }
    if l == "" { return "info" }
    return l
}

func newEncoder(c config.LogConfig) zapcore.Encoder {
    var ec zapcore.EncoderConfig
    if c.Development {
        ec = zap.NewDevelopmentEncoderConfig()
        ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
    } else {
        ec = zap.NewProductionEncoderConfig()
        ec.EncodeTime = zapcore.ISO8601TimeEncoder
    }
    if strings.EqualFold(c.Format, "json") {
        if c.Development { ec.EncodeLevel = zapcore.CapitalLevelEncoder }
        return zapcore.NewJSONEncoder(ec)
    }
    return zapcore.NewConsoleEncoder(ec)
}

// sinkFor maps an output name to a writer. Anything other than stdout or
// stderr is a file path, rotated by lumberjack when rotation is enabled.
func sinkFor(out string, c config.LogConfig) zapcore.WriteSyncer {
    switch strings.ToLower(out) {
    case "stdout":
        return zapcore.Lock(os.Stdout)
    case "stderr":
        return zapcore.Lock(os.Stderr)
    }
    if c.Rotation.Enable {
        name := out
        if fn := strings.TrimSpace(c.Rotation.Filename); fn != "" { name = fn }
        return zapcore.AddSync(&lumberjack.Logger{
            Filename:   name,
            MaxSize:    max(c.Rotation.MaxSizeMB, 10),
            MaxBackups: max(c.Rotation.MaxBackups, 1),
            MaxAge:     max(c.Rotation.MaxAgeDays, 7),
            Compress:   c.Rotation.Compress,
        })
    }
    if dir := filepath.Dir(out); dir != "." && dir != "" { _ = os.MkdirAll(dir, 0o755) }
    f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
    if err != nil { return zapcore.Lock(os.Stderr) }
    return zapcore.AddSync(f)
}
