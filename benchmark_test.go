package logstream

import (
	"io"
	"testing"
)

func createBenchRegistry(b *testing.B, format string) *Registry {
	b.Helper()
	cfg := DefaultConfig()
	cfg.Console.Format = format
	reg := NewRegistry(WithConsoleWriters(io.Discard, io.Discard))
	if err := reg.Configure(cfg); err != nil {
		b.Fatal(err)
	}
	return reg
}

// BenchmarkLoggerInfo benchmarks the performance of standard Info logging
func BenchmarkLoggerInfo(b *testing.B) {
	l := createBenchRegistry(b, "txt").Get("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("benchmark message", "i", i)
	}
}

// BenchmarkLoggerJSON benchmarks the performance of JSON formatted logging
func BenchmarkLoggerJSON(b *testing.B) {
	l := createBenchRegistry(b, "json").Get("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("benchmark message", "i", i, "key", "value")
	}
}

// BenchmarkLoggerFiltered benchmarks records below every transport level
func BenchmarkLoggerFiltered(b *testing.B) {
	l := createBenchRegistry(b, "txt").Get("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Debug("filtered message", "i", i)
	}
}

// BenchmarkBusSubscribers benchmarks fan-out to several subscribers
func BenchmarkBusSubscribers(b *testing.B) {
	reg := NewRegistry()
	for i := 0; i < 8; i++ {
		reg.Bus().Subscribe(func(Record) {})
	}
	l := reg.Get("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("fan out", "i", i)
	}
}

// BenchmarkConcurrentLogging benchmarks logging from parallel goroutines
func BenchmarkConcurrentLogging(b *testing.B) {
	reg := createBenchRegistry(b, "txt")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		l := reg.Get("parallel")
		i := 0
		for pb.Next() {
			l.Info("concurrent", "i", i)
			i++
		}
	})
}
