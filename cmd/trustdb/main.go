// trustdb is the TRUST ingestion daemon: activations, movements,
// cancellations and the associated deductions, one broker frame per database
// transaction.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/philwieland/openrail-sub000/internal/alert"
	"github.com/philwieland/openrail-sub000/internal/config"
	"github.com/philwieland/openrail-sub000/internal/feed"
	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/ops"
	"github.com/philwieland/openrail-sub000/internal/store"
	"github.com/philwieland/openrail-sub000/internal/trust"
)

const prog = "trustdb"

var build = "dev"

func main() {
	configPath := flag.String("c", "/etc/openrail.conf", "config file")
	flag.Parse()

	logger := log.New(os.Stdout, "["+prog+"] ", log.LstdFlags)
	logger.Printf("%s build %s starting", prog, build)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Printf("CRITICAL %v", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.ConnString())
	if err != nil {
		logger.Printf("CRITICAL %v", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Migrate(prog); err != nil {
		logger.Printf("CRITICAL %v", err)
		os.Exit(1)
	}

	m := metrics.New(prog)
	counters := metrics.NewCounterSet(trust.CounterNames...)
	alerter := &alert.Alerter{
		SMTPServer: cfg.SMTPServer,
		From:       prog + "@" + cfg.PublicURL,
		To:         cfg.ReportEmail,
		Prog:       prog,
		Build:      build,
		Logger:     logger,
	}

	ingester := &trust.Ingester{
		Store:          st,
		Counters:       counters,
		Metrics:        m,
		Logger:         logger,
		Alerter:        alerter,
		NoDeduceAct:    cfg.TrustNoDeduceAct,
		QueueLen:       cfg.DeferredQueue,
		RetryAfter:     time.Duration(cfg.DeferredRetryS) * time.Second,
		LatencyAlertMs: cfg.LatencyAlertMs,
		Location:       time.Local,
		Debug:          cfg.Debug,
	}

	var source feed.Source
	if cfg.StompServer != "" {
		source = &feed.StompClient{
			Addr:     cfg.StompServer,
			User:     cfg.StompUser,
			Password: cfg.StompPassword,
			Topic:    "/topic/TRAIN_MVT_ALL_TOC",
		}
	} else {
		source = feed.NewStompyClient(cfg.StompyPort, feed.PortTRUST)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	opsServer := &ops.Server{
		Prog:    prog,
		Build:   build,
		Store:   st,
		Logger:  logger,
		Started: time.Now(),
	}
	if cfg.OpsPort > 0 {
		opsServer.Start(cfg.OpsPort)
	}

	go ops.RunDaily(ctx, cfg.DailyReportHour, cfg.DailyReportMin, func() {
		alerter.Send("daily report",
			counters.Rollover(prog+" daily statistics"))
	})

	consumer := &feed.Consumer{
		Name:    "TRUST",
		Source:  source,
		Handler: ingester.HandleFrame,
		Metrics: m,
		Logger:  logger,
		Idle:    ingester.Idle,
	}
	consumer.Run(ctx)

	ingester.DiscardDeferred()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	opsServer.Stop(shutdownCtx)
	cancel()
	alerter.Send("shutdown report", counters.Rollover(prog+" final statistics"))
	logger.Printf("%s stopped", prog)
}
