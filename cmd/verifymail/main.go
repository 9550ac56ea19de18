// Command verifymail verifies email addresses from the command line or a
// file and prints JSON results with summary statistics.
//
// Configuration comes from flags and environment variables (a .env file
// is loaded if present):
//
//	VERIFY_HELO_HOSTNAME   hostname sent in EHLO
//	VERIFY_MAIL_FROM       envelope sender (empty = null sender)
//	VERIFY_MAX_CONCURRENT  global outstanding-probe cap
//	VERIFY_MAX_PER_DOMAIN  per-domain outstanding-probe cap
//	VERIFY_CONNECT_TIMEOUT e.g. "10s"
//	VERIFY_TOTAL_TIMEOUT   e.g. "30s"
//	VERIFY_RETRY_DELAY     greylist retry delay, e.g. "45s"
//	VERIFY_MAX_RETRIES     greylist retry count
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadsnipe/verifykit"
)

func main() {
	_ = godotenv.Load()

	var (
		file            = flag.String("file", "", "read addresses from file, one per line")
		output          = flag.String("output", "", "write JSON to file instead of stdout")
		verbose         = flag.Bool("verbose", false, "enable debug logging")
		allowDisposable = flag.Bool("allow-disposable", false, "probe disposable domains instead of screening them")
	)
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	emails := flag.Args()
	if *file != "" {
		fromFile, err := readAddresses(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
		emails = append(emails, fromFile...)
	}
	if len(emails) == 0 {
		fmt.Fprintln(os.Stderr, "usage: verifymail [flags] address... | verifymail -file addresses.txt")
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := optionsFromEnv()
	opts.Logger = log
	opts.DisableDisposableCheck = *allowDisposable

	v, err := verifykit.New(opts)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = v.Close() }()

	log.WithField("count", len(emails)).Info("verifying addresses")

	start := time.Now()
	results := v.VerifyBatch(context.Background(), emails, func(completed, total int) {
		log.WithFields(logrus.Fields{
			"completed": completed,
			"total":     total,
		}).Debug("progress")
	})
	stats := verifykit.Summarize(results, time.Since(start))

	log.WithFields(logrus.Fields{
		"deliverable": stats.Deliverable,
		"total":       stats.Total,
		"duration":    stats.Duration.Round(time.Millisecond).String(),
	}).Info("done")

	report := struct {
		Results []verifykit.VerificationResult `json:"results"`
		Stats   verifykit.Stats                `json:"stats"`
	}{results, stats}

	if err := writeReport(*output, report); err != nil {
		log.Fatal(err)
	}
}

func readAddresses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

func writeReport(path string, report interface{}) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func optionsFromEnv() verifykit.Options {
	return verifykit.Options{
		HeloHostname:         os.Getenv("VERIFY_HELO_HOSTNAME"),
		MailFrom:             os.Getenv("VERIFY_MAIL_FROM"),
		GlobalConcurrency:    envInt("VERIFY_MAX_CONCURRENT"),
		PerDomainConcurrency: envInt("VERIFY_MAX_PER_DOMAIN"),
		ConnectTimeout:       envDuration("VERIFY_CONNECT_TIMEOUT"),
		OperationTimeout:     envDuration("VERIFY_TOTAL_TIMEOUT"),
		GreylistRetryDelay:   envDuration("VERIFY_RETRY_DELAY"),
		GreylistMaxRetries:   envInt("VERIFY_MAX_RETRIES"),
	}
}

// envInt returns 0 (meaning "use the default") when unset or malformed.
func envInt(key string) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

func envDuration(key string) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 0
}
