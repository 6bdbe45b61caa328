package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bidhouse/chain"
	"bidhouse/config"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// probeResult is one endpoint's resolved reading plus probe metadata.
// DriftSeconds is local minus chain time, so a positive drift means the
// local clock runs ahead of the chain.
type probeResult struct {
	RPCURL       string  `json:"rpc_url"`
	Timestamp    int64   `json:"timestamp"`
	BlockNumber  uint64  `json:"block_number"`
	Accurate     bool    `json:"is_accurate"`
	LocalTime    int64   `json:"local_time"`
	DriftSeconds float64 `json:"drift_seconds"`
	LatencyMS    int64   `json:"latency_ms"`
}

// NewChainTimeCmd creates the chaintime command.
func NewChainTimeCmd() *cobra.Command {
	var (
		rpcURLs      []string
		watch        bool
		interval     time.Duration
		probeTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chaintime",
		Short: "Probe chain time endpoints",
		Long: `Probe JSON-RPC endpoints and report the latest block timestamp next to
the local clock.

Each endpoint is queried independently with eth_getBlockByNumber("latest").
Endpoints that cannot be reached fall back to the local clock and are
flagged as inaccurate; the command exits non-zero when every probe fell
back. With no --rpc-url flags the endpoints come from the config file
(chain.rpc_url plus chain.fallback_rpc_urls).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := rpcURLs
			if len(urls) == 0 {
				cfg, err := config.LoadConfigFrom(configFile)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				if cfg.Chain.RPCURL != "" {
					urls = append(urls, cfg.Chain.RPCURL)
				}
				urls = append(urls, cfg.Chain.FallbackRPCURLs...)
				if !cmd.Flags().Changed("timeout") && cfg.Chain.RequestTimeout > 0 {
					probeTimeout = cfg.Chain.RequestTimeout
				}
			}
			if len(urls) == 0 {
				return fmt.Errorf("no RPC endpoints configured: pass --rpc-url or set chain.rpc_url in the config file")
			}

			if watch {
				return watchEndpoints(urls, interval, probeTimeout)
			}

			// Show progress spinner while probing
			var s *spinner.Spinner
			if !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Probing chain endpoints..."
				s.Start()
			}

			results := probeEndpoints(context.Background(), urls, probeTimeout)

			if s != nil {
				s.Stop()
			}

			if outputJSON {
				if err := outputAsJSON(results); err != nil {
					return err
				}
			} else {
				renderProbeResults(results)
			}

			if !anyAccurate(results) {
				return fmt.Errorf("all %d endpoints fell back to the local clock", len(results))
			}

			return nil
		},
	}

	registerGlobalFlags(cmd)
	cmd.Flags().StringArrayVar(&rpcURLs, "rpc-url", nil, "RPC endpoint to probe (repeatable; defaults to configured endpoints)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Probe continuously until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "Probe interval in watch mode")
	cmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Per-probe timeout")

	return cmd
}

// probeEndpoints queries each endpoint once. Probes never error out; a
// failed endpoint contributes a local-clock reading flagged inaccurate,
// exactly as the server-side clock degrades.
func probeEndpoints(ctx context.Context, urls []string, timeout time.Duration) []probeResult {
	client := &http.Client{Timeout: timeout}
	logger := zap.NewNop().Sugar()

	results := make([]probeResult, 0, len(urls))
	for _, u := range urls {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		reading := chain.FetchRPC(probeCtx, client, u, nil, logger)
		latency := time.Since(start)
		cancel()

		local := time.Now()
		r := probeResult{
			RPCURL:      u,
			Timestamp:   reading.Timestamp,
			BlockNumber: reading.BlockNumber,
			Accurate:    reading.Accurate,
			LocalTime:   local.Unix(),
			LatencyMS:   latency.Milliseconds(),
		}
		if reading.Accurate {
			r.DriftSeconds = local.Sub(reading.Time()).Seconds()
		}
		results = append(results, r)
	}

	return results
}

// anyAccurate reports whether at least one probe resolved real chain time.
func anyAccurate(results []probeResult) bool {
	for _, r := range results {
		if r.Accurate {
			return true
		}
	}
	return false
}

// watchEndpoints re-probes on an interval until interrupted. Fallback
// rounds do not abort the loop; watch mode is for observing recovery.
func watchEndpoints(urls []string, interval, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results := probeEndpoints(ctx, urls, timeout)
		if outputJSON {
			if err := outputAsJSON(results); err != nil {
				return err
			}
		} else {
			renderProbeResults(results)
			fmt.Println()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
