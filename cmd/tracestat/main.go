package main

import (
	"log/slog"
	"net/http"

	_ "net/http/pprof" // profiling

	"tracestat/internal/config"
	"tracestat/internal/tracestat/cmd"
	"tracestat/internal/tracestat/log"
)

func main() {
	defer log.RecoverPanic("main", func() {
		slog.Error("Application terminated due to unhandled panic")
	})

	if cfg, err := config.Load(); err == nil && cfg.ProfileAddr != "" {
		go func() {
			slog.Info("Serving pprof", "addr", cfg.ProfileAddr)
			if httpErr := http.ListenAndServe(cfg.ProfileAddr, nil); httpErr != nil {
				slog.Error("Failed to pprof listen", "error", httpErr)
			}
		}()
	}

	cmd.Execute()
}
