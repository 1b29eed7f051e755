// cifdb fetches and applies bulk CIF schedule extracts: the daily update in
// normal operation, the full extract with -a. With -t it parses and counts
// without touching the database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/philwieland/openrail-sub000/internal/alert"
	"github.com/philwieland/openrail-sub000/internal/cif"
	"github.com/philwieland/openrail-sub000/internal/config"
	"github.com/philwieland/openrail-sub000/internal/feed"
	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/store"
)

const prog = "cifdb"

var build = "dev"

func main() {
	configPath := flag.String("c", "/etc/openrail.conf", "config file")
	url := flag.String("u", "", "fetch URL, overriding the vendor default")
	file := flag.String("f", "", "load a local file instead of fetching")
	fetchFull := flag.Bool("a", false, "fetch the full extract")
	testMode := flag.Bool("t", false, "parse and count only, no database")
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

	counters := metrics.NewCounterSet(cif.CounterNames...)

	var st *store.Store
	if !*testMode {
		st, err = store.Open(cfg.ConnString())
		if err != nil {
			logger.Printf("CRITICAL %v", err)
			os.Exit(1)
		}
		defer st.Close()
		if err := st.Migrate(prog); err != nil {
			logger.Printf("CRITICAL %v", err)
			os.Exit(1)
		}
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
		res, err := fetcher.Fetch(fetchURL(cfg, *url, *fetchFull))
		if err != nil {
			logger.Printf("CRITICAL fetch failed: %v", err)
			alerter.Send("fetch failed", err.Error())
			os.Exit(1)
		}
		if res.UsedInsecure {
			logger.Printf("CRITICAL fetch used insecure TLS")
		}
		logger.Printf("fetched extract of %s", res.Extract.Format(time.RFC3339))
		path = res.Path
	}

	loader := &cif.Loader{
		Store:    st,
		Counters: counters,
		Logger:   logger,
		TestMode: *testMode,
		Verbose:  *verbose,
	}
	if err := loader.LoadFile(path, *fetchFull); err != nil {
		logger.Printf("CRITICAL load failed: %v", err)
		alerter.Send("CIF load failed", fmt.Sprintf("file %s\n\n%v", path, err))
		os.Exit(1)
	}

	report := counters.Rollover(fmt.Sprintf("%s run of %s against %s",
		prog, time.Now().Format("2006-01-02 15:04"), path))
	if *testMode {
		printTestSummary(counters, report)
	} else {
		alerter.Send("CIF load complete", report)
	}
}

// fetchURL builds the vendor download URL: the full extract, or the daily
// update named after yesterday's weekday.
func fetchURL(cfg *config.Config, override string, full bool) string {
	if override != "" {
		return override
	}
	if full {
		return fmt.Sprintf(
			"https://%s/ntrod/CifFileAuthenticate?type=CIF_ALL_FULL_DAILY&day=toc-full",
			cfg.NRServer)
	}
	day := strings.ToLower(time.Now().AddDate(0, 0, -1).Format("Mon"))
	return fmt.Sprintf(
		"https://%s/ntrod/CifFileAuthenticate?type=CIF_ALL_UPDATE_DAILY&day=toc-update-%s",
		cfg.NRServer, day)
}

// printTestSummary renders the test-mode run to the terminal, colouring the
// counters that indicate anything unexpected.
func printTestSummary(counters *metrics.CounterSet, report string) {
	fmt.Println(report)
	warn := color.New(color.FgYellow, color.Bold)
	good := color.New(color.FgGreen)
	if n := counters.Total("NotRecog"); n > 0 {
		warn.Printf("%d unrecognised cards\n", n)
	} else {
		good.Println("all cards recognised")
	}
	good.Println("test mode: nothing written")
}
