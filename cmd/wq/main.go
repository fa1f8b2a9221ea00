package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/j-woz/cctools/cmdutils"
	"github.com/j-woz/cctools/inner"
	"github.com/j-woz/cctools/workqueue"
	"github.com/j-woz/cctools/workqueue/dispatcher"
	"github.com/j-woz/cctools/workqueue/futures"
)

var (
	queueID      = flag.String("queueID", uuid.New().String(), "ID to identify this queue in logs")
	numWorkers   = flag.Int("workers", dispatcher.DefaultNumWorkers, "number of local worker processes")
	taskTimeout  = flag.Duration("taskTimeout", 0, "per-task wall time bound. 0 means unbounded")
	logFormat    = flag.String("logFormat", "text", "format to use for the logger. The formats it accepts are: 'text', 'json'")
	logLevel     = flag.String("logLevel", "info", "level to use for the logger. The levels it accepts are: 'info', 'debug', 'error', 'warn'")
	pprofEnabled = flag.Bool("pprof", false, "enable pprof endpoint under '/debug/pprof/'")
	internalAddr = flag.String("internalAddr", "", "internal server address for metrics and pprof, e.g. 0.0.0.0:9091. Empty disables it")
)

func main() {
	flag.Parse()

	commands := flag.Args()
	if len(commands) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] COMMAND [COMMAND...]\n", os.Args[0])
		os.Exit(2)
	}

	log, err := cmdutils.ParseLog(*logLevel, *logFormat, os.Stderr)
	if err != nil {
		slog.Error("failed to parse log", slog.Any("error", err))
		os.Exit(1)
	}
	log = log.With(slog.String("service", "wq"), slog.String("queue_id", *queueID))

	m, err := inner.NewMetrics(log)
	if err != nil {
		log.Error("failed to initialize metrics", slog.Any("error", err))
		os.Exit(1)
	}

	if *internalAddr != "" {
		internalMux := http.NewServeMux()
		m.AttachMetrics(internalMux)
		if *pprofEnabled {
			inner.AttachPProf(internalMux)
			log.Info("pprof enabled", slog.String("addr", *internalAddr+"/debug/pprof"))
		}
		go func() {
			log.Info("internal server listening", slog.String("addr", *internalAddr))
			srvr := http.Server{Addr: *internalAddr, Handler: internalMux}
			if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("received error", slog.Any("error", err), slog.String("subService", "httpInternalServer"))
			}
		}()
	}

	disp, err := dispatcher.NewLocalDispatcher(dispatcher.LocalOptions{
		NumWorkers: *numWorkers,
	})
	if err != nil {
		log.Error("error creating local dispatcher", slog.Any("error", err))
		os.Exit(1)
	}

	q, err := workqueue.NewQueue(disp, workqueue.Options{
		Logger:  log,
		Metrics: m.Registerer(),
	})
	if err != nil {
		log.Error("error creating queue", slog.Any("error", err))
		os.Exit(1)
	}

	tasks := make([]*futures.FutureTask, 0, len(commands))
	for i, command := range commands {
		ft := futures.New(command)
		ft.Task().SpecifyTag(fmt.Sprintf("task-%d", i))
		if *taskTimeout > 0 {
			ft.Task().SpecifyMaxRunTime(*taskTimeout)
		}
		ft.OnDone(func(done *futures.FutureTask) {
			log.Info(
				"task finished",
				slog.Int("task_id", done.TaskID()),
				slog.String("tag", done.Task().Tag))
		})

		if _, err := q.Submit(ft); err != nil {
			log.Error("error submitting task", slog.Any("error", err))
			os.Exit(1)
		}
		tasks = append(tasks, ft)
	}

	go func() {
		sig := waitForSignal()
		log.Info("received signal, cancelling outstanding tasks", slog.Any("signal", sig))
		for _, ft := range tasks {
			ft.Cancel()
		}
	}()

	exitCode := 0
	for _, ft := range tasks {
		output, err := ft.Result(context.Background())
		if err != nil {
			log.Error(
				"task failed",
				slog.String("tag", ft.Task().Tag),
				slog.Any("error", err))
			exitCode = 1
			continue
		}
		fmt.Printf("%s: %s", ft.Task().Tag, output)
	}

	stats := q.Stats()
	log.Info(
		"queue drained",
		slog.Int("tasks_done", stats.TasksDone),
		slog.Int("tasks_failed", stats.TasksFailed),
		slog.Int("tasks_cancelled", stats.TasksCancelled),
		slog.Duration("p95_run_time", time.Duration(stats.RunTimeP95*float64(time.Second))))

	if err := q.Close(); err != nil {
		log.Error("error closing queue", slog.Any("error", err))
	}
	if err := disp.Close(); err != nil {
		log.Error("error closing dispatcher", slog.Any("error", err))
	}

	os.Exit(exitCode)
}

func waitForSignal() os.Signal {
	osSig := make(chan os.Signal, 1)
	signal.Notify(osSig, syscall.SIGTERM)
	signal.Notify(osSig, syscall.SIGINT)

	// wait for a signal to be received
	return <-osSig
}
