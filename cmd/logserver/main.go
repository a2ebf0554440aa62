package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/lixenwraith/logstream"
	"github.com/lixenwraith/logstream/compat"
	"github.com/lixenwraith/logstream/tail"
	"github.com/valyala/fasthttp"
)

func main() {
	httpAddr := flag.String("http", "127.0.0.1:8080", "HTTP listen address")
	tailAddr := flag.String("tail", "127.0.0.1:9000", "live tail listen address")
	configFile := flag.String("config", "logstream.toml", "config file")
	flag.Parse()

	cfg, err := logstream.NewConfigFromFile(*configFile, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	reg := logstream.NewRegistry()
	if err := reg.Configure(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure registry: %v\n", err)
		os.Exit(1)
	}
	defer reg.Shutdown(2 * time.Second)

	tailSrv := tail.New(reg, *tailAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = tailSrv.Start(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start tail server: %v\n", err)
		os.Exit(1)
	}

	builder := compat.NewBuilder().WithRegistry(reg).WithLoggerName("http")
	httpLogger, err := builder.BuildFastHTTP()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build fasthttp logger: %v\n", err)
		os.Exit(1)
	}

	server := &fasthttp.Server{
		Handler:      compat.AccessLog(reg, router(reg)),
		Logger:       httpLogger,
		Name:         "logserver",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(*httpAddr); err != nil {
			reg.Get("http").Error("HTTP server failed", "error", err)
		}
	}()
	reg.Get("http").Info("Listening", "http", *httpAddr, "tail", *tailAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	_ = server.Shutdown()
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = tailSrv.Stop(ctx)
}

// router serves level inspection and control:
//
//	GET  /levels                      all loggers
//	POST /levels?logger=&transport=&level=
//	GET  /history?n=10
func router(reg *logstream.Registry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/levels":
			if ctx.IsPost() {
				setLevels(reg, ctx)
				return
			}
			writeLevels(reg, ctx)
		case "/history":
			n := ctx.QueryArgs().GetUintOrZero("n")
			if n == 0 {
				n = 10
			}
			ctx.SetContentType("application/x-ndjson")
			var out []byte
			for _, r := range reg.Bus().History().Last(n) {
				out = logstream.AppendJSON(out, r, "")
			}
			ctx.SetBody(out)
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

func writeLevels(reg *logstream.Registry, ctx *fasthttp.RequestCtx) {
	all := reg.AllLevels()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx.SetContentType("text/plain")
	for _, name := range names {
		parts := make([]string, 0, len(all[name]))
		for transport, level := range all[name] {
			parts = append(parts, transport+"="+logstream.LevelName(level))
		}
		sort.Strings(parts)
		fmt.Fprintf(ctx, "%s %s\n", name, strings.Join(parts, " "))
	}
}

func setLevels(reg *logstream.Registry, ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	level, err := logstream.Level(string(args.Peek("level")))
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusBadRequest)
		return
	}

	name := string(args.Peek("logger"))
	transport := string(args.Peek("transport"))

	var sel logstream.Selector
	switch {
	case name != "" && transport != "":
		sel = logstream.ForLoggerTransport(name, transport)
	case name != "":
		sel = logstream.ForLogger(name)
	case transport != "":
		sel = logstream.ForTransport(transport)
	default:
		sel = logstream.All()
	}
	reg.SetLevels(sel, level)
	writeLevels(reg, ctx)
}
