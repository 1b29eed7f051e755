// ttreconcile diffs the live schedule store against a full CIF extract,
// normally on Saturdays after the vendor's weekly full publication. It
// reports differences; with -m it also repairs them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/philwieland/openrail-sub000/internal/alert"
	"github.com/philwieland/openrail-sub000/internal/config"
	"github.com/philwieland/openrail-sub000/internal/feed"
	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/reconcile"
	"github.com/philwieland/openrail-sub000/internal/store"
)

const prog = "ttreconcile"

var build = "dev"

func main() {
	configPath := flag.String("c", "/etc/openrail.conf", "config file")
	file := flag.String("f", "", "reconcile against a local file instead of fetching")
	modify := flag.Bool("m", false, "apply repairs, not just report")
	override := flag.Bool("o", false, "run even when it is not Saturday")
	verbose := flag.Bool("p", false, "verbose progress")
	insecure := flag.Bool("i", false, "permit insecure TLS retry on fetch")
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

	alerter := &alert.Alerter{
		SMTPServer: cfg.SMTPServer,
		From:       prog + "@" + cfg.PublicURL,
		To:         cfg.ReportEmail,
		Prog:       prog,
		Build:      build,
		Logger:     logger,
	}

	path := *file
	if path == "" {
		fetcher := &feed.Fetcher{
			User:          cfg.NRUser,
			Password:      cfg.NRPassword,
			TmpDir:        cfg.TmpDir,
			Prog:          prog,
			AllowInsecure: *insecure,
			Logger:        logger,
		}
		fetcher.Housekeep()
		url := fmt.Sprintf(
			"https://%s/ntrod/CifFileAuthenticate?type=CIF_ALL_FULL_DAILY&day=toc-full",
			cfg.NRServer)
		res, err := fetcher.Fetch(url)
		if err != nil {
			logger.Printf("CRITICAL fetch failed: %v", err)
			alerter.Send("fetch failed", err.Error())
			os.Exit(1)
		}
		logger.Printf("fetched extract of %s", res.Extract.Format(time.RFC3339))
		path = res.Path
	}

	counters := metrics.NewCounterSet(reconcile.CounterNames...)
	r := &reconcile.Reconciler{
		Store:    st,
		Counters: counters,
		Logger:   logger,
		Apply:    *modify,
		Override: *override,
		Verbose:  *verbose,
		Output:   filepath.Join(cfg.TmpDir, prog+"-demote.cif"),
	}
	if err := r.Run(path); err != nil {
		if errors.Is(err, reconcile.ErrNotSaturday) {
			logger.Printf("CRITICAL %v", err)
			os.Exit(1)
		}
		logger.Printf("CRITICAL reconcile failed: %v", err)
		alerter.Send("reconcile failed", fmt.Sprintf("file %s\n\n%v", path, err))
		os.Exit(1)
	}

	report := counters.Rollover(fmt.Sprintf("%s run of %s against %s",
		prog, time.Now().Format("2006-01-02 15:04"), path))
	fmt.Println(report)
	alerter.Send("reconcile complete", report)
}
