package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"
)

func main() {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
        fmt.Fprintln(os.Stderr, "commitcast-node:", err)
        stop()
        os.Exit(1)
    }
}
