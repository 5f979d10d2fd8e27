// Package main serves the Groq video summarizer. Groq models are text-only,
// so the agent only sees the uploaded file's name and searches the web.
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

	if err := app.ServeVideo(*configPath, config.TargetGroqVideo); err != nil {
		slog.Error("video-groq failed", "error", err)
		os.Exit(1)
	}
}
