// Package main serves the Gemini video summarizer, which uploads each video
// to Gemini and lets a multimodal agent answer questions about it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"mediaqa/config"
	"mediaqa/internal/app"
	"mediaqa/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (default: config/config.yaml or config.yaml when present)")
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if err := app.ServeVideo(*configPath, config.TargetGeminiVideo); err != nil {
		slog.Error("video-gemini failed", "error", err)
		os.Exit(1)
	}
}
