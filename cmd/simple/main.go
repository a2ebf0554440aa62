package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lixenwraith/logstream"
)

const configFile = "simple_config.toml"

// Example TOML content
var tomlContent = `
# Example simple_config.toml
[logstream]
  buffer_size = 50
  root_dir = "./simple_logs"
  levels = "worker.console=debug,db.file=warn"

[logstream.console]
  enabled = true
  level = "info"
  format = "txt"
  show_label = true

[logstream.file]
  enabled = true
  level = "debug"
  format = "json"
  filename = "app.log"
  rotation = true
`

func main() {
	fmt.Println("--- Simple Logger Example ---")

	// --- Setup Config ---
	if err := os.WriteFile(configFile, []byte(tomlContent), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write dummy config: %v\n", err)
	} else {
		fmt.Printf("Created dummy config file: %s\n", configFile)
	}

	// Command line overrides apply on top of the file, e.g. --logstream.console.level=debug
	cfg, err := logstream.NewConfigFromFile(configFile, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// --- Initialize Registry ---
	reg := logstream.NewRegistry()
	if err := reg.Configure(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure registry: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Registry configured.")

	// --- Logging ---
	app := reg.Get("app")
	app.Debug("This is a debug message.", "user_id", 123) // File only
	app.Info("Application starting...")
	app.Warn("Potential issue detected.", "threshold", 0.95)
	app.Error("An error occurred!", "error", fmt.Errorf("connection refused"))

	db := reg.Get("db")
	db.Info("Connected", "pool", 4) // Console only, file is at warn

	// Logging from goroutines
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker := reg.Get("worker")
			worker.Debug("Goroutine started", "id", id)
			time.Sleep(time.Duration(50+id*50) * time.Millisecond)
			worker.Info("Goroutine finished", "id", id)
		}(i)
	}
	wg.Wait()
	fmt.Println("Goroutines finished.")

	// --- Runtime level control ---
	if !reg.IsDebug("db") {
		reg.SetLevels(logstream.ForLogger("db"), logstream.LevelDebug)
	}
	db.Debug("Query plan", "rows", 42)
	for name, levels := range reg.AllLevels() {
		fmt.Printf("  %-8s %v\n", name, levels)
	}

	// --- History ---
	fmt.Printf("History holds %d records, last:\n", reg.Bus().History().Len())
	for _, r := range reg.Bus().History().Last(3) {
		fmt.Printf("  [%s] %s\n", r.Source, r.Message)
	}
	for _, rot := range reg.Rotations().Chains() {
		fmt.Printf("Rotation of %s next at %s\n", rot.Path(), rot.Next().Format(time.RFC1123))
	}

	// --- Shutdown ---
	fmt.Println("Shutting down registry...")
	if err := reg.Shutdown(2 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Registry shutdown error: %v\n", err)
	} else {
		fmt.Println("Registry shutdown complete.")
	}

	fmt.Println("--- Example Finished ---")
	fmt.Println("Check log files in './simple_logs'.")
}
