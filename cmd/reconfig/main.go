package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/logstream"
)

// Simulate rapid reconfiguration and level changes while logging
func main() {
	var count atomic.Int64

	reg := logstream.NewRegistry()
	cfg, err := logstream.NewConfigFromDefaults("console.enabled=false")
	if err != nil {
		fmt.Printf("Initial config error: %v\n", err)
		return
	}
	if err := reg.Configure(cfg); err != nil {
		fmt.Printf("Initial configure error: %v\n", err)
		return
	}

	// Log something constantly
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l := reg.Get("reconfig")
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			l.Info("Test log", "i", i)
			count.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	// Resize the history and flip levels rapidly
	for i := 0; i < 10; i++ {
		next, err := logstream.NewConfigFromDefaults(
			"console.enabled=false",
			fmt.Sprintf("buffer_size=%d", 10*(i+1)),
		)
		if err == nil {
			err = reg.Configure(next)
		}
		if err != nil {
			fmt.Printf("Configure error: %v\n", err)
		}
		if i%2 == 0 {
			reg.SetLevels(logstream.All(), logstream.LevelError)
		} else {
			reg.SetLevels(logstream.ForTransport(logstream.TransportConsole), logstream.LevelAll)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	close(stop)
	<-done

	stats := reg.Bus().Stats()
	fmt.Printf("Total logs attempted: %d\n", count.Load())
	attempted := uint64(count.Load())
	fmt.Printf("Published: %d, history %d/%d\n", stats.Published, stats.HistoryLen, stats.HistoryCap)
	if stats.Published > attempted {
		fmt.Println("Inconsistency: more records published than attempted")
	}

	if err := reg.Shutdown(time.Second); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
}
