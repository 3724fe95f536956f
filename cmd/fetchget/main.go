// fetchget fetches a single URL through the go-fetch engine and prints the
// response body. Mostly useful for poking at the engine from a shell.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	fetch "github.com/arvhen/go-fetch"
	"github.com/arvhen/go-fetch/jobqueue"
	"github.com/arvhen/go-fetch/logging"
)

var (
	timeout      time.Duration
	maxRedirects int
	insecure     bool
	verbose      bool
	withHeaders  bool
	userAgent    string
)

func main() {
	root := &cobra.Command{
		Use:          "fetchget <url>",
		Short:        "Fetch a URL with the go-fetch engine",
		Args:         cobra.ExactArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}
	f := root.Flags()
	f.DurationVar(&timeout, "timeout", 10*time.Second, "per-phase deadline")
	f.IntVar(&maxRedirects, "max-redirects", 10, "redirect hop cap")
	f.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	f.BoolVarP(&verbose, "verbose", "v", false, "log state transitions to stderr")
	f.BoolVarP(&withHeaders, "include", "i", false, "print status and headers before the body")
	f.StringVar(&userAgent, "user-agent", "", "override the User-Agent header")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.Nop()
	if verbose {
		logger = logging.New(logging.Config{Level: slog.LevelDebug})
	}

	queue := jobqueue.New(logger)
	defer queue.Shutdown()

	opts := []fetch.Option{fetch.WithLogger(logger)}
	if insecure {
		opts = append(opts, fetch.WithInsecureTLS())
	}
	if userAgent != "" {
		opts = append(opts, fetch.WithUserAgent(userAgent))
	}
	client := fetch.NewClient(queue, opts...)

	req, err := fetch.NewRequest(args[0])
	if err != nil {
		return err
	}
	req.SetTimeout(timeout)
	req.SetMaxRedirects(maxRedirects)

	if _, err := client.Start(req); err != nil {
		return err
	}
	for !req.Done() {
		queue.Dispatch()
		time.Sleep(time.Millisecond)
	}

	if req.Status() == -1 {
		return fmt.Errorf("no response from %s", args[0])
	}
	if withHeaders {
		fmt.Printf("HTTP %d\r\n%s\r\n\r\n", req.Status(), req.Headers())
	}
	fmt.Print(req.Body())
	return nil
}
