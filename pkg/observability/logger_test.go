package observability

import (
    "os"
    "path/filepath"
    "strings"
    "testing"

    "go.uber.org/zap"

    "commitcast/pkg/config"
)

func TestSetupLoggerFileOutput(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "node.log")
    lg, err := SetupLogger(config.LogConfig{Level: "warning", Format: "json", Outputs: []string{path}}, zap.String("app", "test"))
    if err != nil { t.Fatalf("setup: %v", err) }
    defer zap.ReplaceGlobals(zap.NewNop())

    zap.L().Info("hidden")
    zap.L().Warn("peer unavailable", zap.String("peer", "10.0.0.1:5636"))
    _ = lg.Sync()

    b, err := os.ReadFile(path)
    if err != nil { t.Fatalf("read: %v", err) }
    s := string(b)
    if strings.Contains(s, "hidden") { t.Fatalf("info entry written at warn level: %s", s) }
    if !strings.Contains(s, `"peer":"10.0.0.1:5636"`) || !strings.Contains(s, `"app":"test"`) { t.Fatalf("unexpected log output: %s", s) }
}

func TestSetupLoggerRotation(t *testing.T) {
    dir := t.TempDir()
    rotated := filepath.Join(dir, "rotated.log")
    lg, err := SetupLogger(config.LogConfig{Level: "debug", Outputs: []string{filepath.Join(dir, "ignored.log")},
        Rotation: config.RotationConfig{Enable: true, Filename: rotated}})
    if err != nil { t.Fatalf("setup: %v", err) }
    defer zap.ReplaceGlobals(zap.NewNop())
    zap.L().Debug("hello")
    _ = lg.Sync()
    if _, err := os.Stat(rotated); err != nil { t.Fatalf("rotated file not written: %v", err) }
}

func TestNormalizeLevel(t *testing.T) {
    for in, want := range map[string]string{"": "info", "WARNING": "warn", " debug ": "debug"} {
        if got := normalizeLevel(in); got != want { t.Fatalf("%q: got %q want %q", in, got, want) }
    }
}
