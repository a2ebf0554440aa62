package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lixenwraith/logstream"
)

const (
	totalBursts    = 100
	logsPerBurst   = 500
	maxMessageSize = 2000
	numWorkers     = 64
	numLoggers     = 8
)

var levels = []int64{
	logstream.LevelDebug,
	logstream.LevelInfo,
	logstream.LevelWarn,
	logstream.LevelError,
}

func generateRandomMessage(size int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteByte(chars[rand.Intn(len(chars))])
	}
	return sb.String()
}

// logBurst simulates a burst of logging activity on one logger
func logBurst(reg *logstream.Registry, burstID int) {
	l := reg.Get(fmt.Sprintf("stress-%d", burstID%numLoggers))
	for i := 0; i < logsPerBurst; i++ {
		level := levels[rand.Intn(len(levels))]
		msg := generateRandomMessage(rand.Intn(maxMessageSize) + 10)
		l.Log(level, msg,
			"wkr", burstID%numWorkers,
			"bst", burstID,
			"seq", i,
			"rnd", rand.Int63(),
		)
	}
}

// worker goroutine function
func worker(reg *logstream.Registry, burstChan chan int, wg *sync.WaitGroup, completedBursts *atomic.Int64) {
	defer wg.Done()
	for burstID := range burstChan {
		logBurst(reg, burstID)
		completed := completedBursts.Add(1)
		if completed%10 == 0 || completed == totalBursts {
			fmt.Printf("\rProgress: %d/%d bursts completed", completed, totalBursts)
		}
	}
}

func main() {
	fmt.Println("--- Logger Stress Test ---")

	logsDir := "./stress_logs"
	_ = os.RemoveAll(logsDir)

	cfg, err := logstream.NewConfigFromDefaults(
		"buffer_size=500",
		"root_dir="+logsDir,
		"console.enabled=false",
		"file.enabled=true",
		"file.level=info",
		"file.rotation=true",
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build config: %v\n", err)
		os.Exit(1)
	}

	reg := logstream.NewRegistry()
	if err := reg.Configure(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure registry: %v\n", err)
		os.Exit(1)
	}

	// Debug bursts stay below the file level and never reach subscribers
	var observed, errorsSeen atomic.Int64
	cancel := reg.Bus().Subscribe(func(r logstream.Record) {
		observed.Add(1)
		if r.Level >= logstream.LevelError {
			errorsSeen.Add(1)
		}
	})
	defer cancel()

	fmt.Printf("Starting stress test: %d workers, %d loggers, %d bursts, %d logs/burst.\n",
		numWorkers, numLoggers, totalBursts, logsPerBurst)
	fmt.Println("Press Ctrl+C to stop early.")

	// --- Setup Workers and Signal Handling ---
	burstChan := make(chan int, numWorkers)
	var wg sync.WaitGroup
	completedBursts := atomic.Int64{}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	stopChan := make(chan struct{})

	go func() {
		<-sigChan
		fmt.Println("\n[Signal Received] Stopping burst generation...")
		close(stopChan)
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(reg, burstChan, &wg, &completedBursts)
	}

	// Rotate mid-run to exercise copy-and-truncate under load
	go func() {
		time.Sleep(200 * time.Millisecond)
		for _, rot := range reg.Rotations().Chains() {
			rot.Run()
		}
	}()

	// --- Run Test ---
	startTime := time.Now()
submit:
	for i := 1; i <= totalBursts; i++ {
		select {
		case burstChan <- i:
		case <-stopChan:
			fmt.Println("[Signal Received] Halting burst submission.")
			break submit
		}
	}
	close(burstChan)

	fmt.Println("\nWaiting for workers to finish...")
	wg.Wait()
	duration := time.Since(startTime)
	finalCompleted := completedBursts.Load()

	fmt.Printf("\n--- Test Finished ---")
	fmt.Printf("\nCompleted %d/%d bursts in %v\n", finalCompleted, totalBursts, duration.Round(time.Millisecond))
	if finalCompleted > 0 && duration.Seconds() > 0 {
		logsPerSec := float64(finalCompleted*logsPerBurst) / duration.Seconds()
		fmt.Printf("Approximate Logs/sec: %.2f\n", logsPerSec)
	}

	stats := reg.Bus().Stats()
	fmt.Printf("Bus: published=%d observed=%d errors=%d history=%d/%d\n",
		stats.Published, observed.Load(), errorsSeen.Load(), stats.HistoryLen, stats.HistoryCap)
	for _, rot := range reg.Rotations().Chains() {
		runs, failures := rot.Stats()
		fmt.Printf("Rotation %s: runs=%d failures=%d\n", rot.Path(), runs, failures)
	}

	fmt.Println("Shutting down registry...")
	if err := reg.Shutdown(10 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Registry shutdown error: %v\n", err)
	} else {
		fmt.Println("Registry shutdown complete.")
	}
	fmt.Printf("Check log files in '%s'.\n", logsDir)
}
