// Package cmd provides command-line interface commands for bidhouse.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bidhouse/auction"
	"bidhouse/chain"
	"bidhouse/config"
	"bidhouse/service"
	"bidhouse/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags shared by all bidhouse subcommands
var (
	outputJSON bool
	configFile string
	noColor    bool
	quiet      bool
)

// Security constants
const (
	maxImportFileSize = 10 * 1024 * 1024 // 10MB - protection against memory exhaustion
	defaultTimeout    = 5 * time.Minute  // Default context timeout for CLI operations
)

// validateFilePath validates a file path to prevent path traversal attacks.
// Security consideration: This function prevents directory traversal attacks by:
// 1. URL decoding to prevent encoding bypass attacks
// 2. Rejecting paths containing ".." sequences (both in original and decoded)
// 3. Cleaning the path using filepath.Clean
// 4. Ensuring the absolute path doesn't escape the current working directory
func validateFilePath(filename string) error {
	// Decode URL encoding to prevent bypass (e.g., %2e%2e%2f)
	decoded, err := url.QueryUnescape(filename)
	if err != nil {
		// If decoding fails, use original filename for safety
		decoded = filename
	}

	// Check for path traversal patterns in both original and decoded
	if strings.Contains(decoded, "..") || strings.Contains(filename, "..") {
		return fmt.Errorf("path traversal detected: '..' not allowed in file path")
	}

	// Clean the decoded path to normalize it
	cleanPath := filepath.Clean(decoded)

	// Get absolute path to verify it's within current directory
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	// Get current working directory
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	// Ensure the absolute path is within or equals the working directory
	// This prevents paths that escape after normalization
	if !strings.HasPrefix(absPath, workDir) {
		return fmt.Errorf("path escapes current directory")
	}

	return nil
}

// registerGlobalFlags attaches the shared persistent flags to a root-level
// command. Both `auctions` and `chaintime` carry the same set.
func registerGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (defaults to ./config.yaml)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
}

// NewAuctionsCmd creates the root auctions command with all subcommands.
func NewAuctionsCmd() *cobra.Command {
	auctionsCmd := &cobra.Command{
		Use:   "auctions",
		Short: "Manage auctions",
		Long: `Manage auctions including creation, inspection, and cancellation.

Commands operate directly on the configured metadata store, so they work
whether or not the bidhouse server is running. Timing fields are derived
from chain time when an RPC endpoint is configured, and from the local
clock otherwise.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	registerGlobalFlags(auctionsCmd)

	// Add subcommands
	auctionsCmd.AddCommand(newAuctionsListCmd())
	auctionsCmd.AddCommand(newAuctionsShowCmd())
	auctionsCmd.AddCommand(newAuctionsAddCmd())
	auctionsCmd.AddCommand(newAuctionsCancelCmd())
	auctionsCmd.AddCommand(newAuctionsImportCmd())
	auctionsCmd.AddCommand(newAuctionsExportCmd())

	return auctionsCmd
}

// newAuctionsListCmd creates the 'list' subcommand
func newAuctionsListCmd() *cobra.Command {
	var (
		statusFilter string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List auctions",
		Long:    "Display a table of auctions with their status and timing windows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			svc, cleanup, err := initAuctionService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			filters := storage.AuctionFilters{
				Limit:  limit,
				Offset: offset,
			}
			if statusFilter != "" {
				filters.Status = auction.Status(statusFilter)
			}

			auctions, total, err := svc.ListAuctions(ctx, filters)
			if err != nil {
				return fmt.Errorf("failed to list auctions: %w", err)
			}

			if outputJSON {
				return outputAsJSON(struct {
					Auctions []auction.Auction `json:"auctions"`
					Total    int64             `json:"total"`
				}{auctions, total})
			}

			renderAuctionsTable(auctions, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (scheduled, active, ended, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of auctions to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of auctions to skip")

	return cmd
}

// newAuctionsShowCmd creates the 'show' subcommand
func newAuctionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <auction-id>",
		Short: "Show detailed auction information",
		Long:  "Display an auction's configuration, timing windows, countdown, and bid standing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			svc, cleanup, err := initAuctionService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.AuctionStatus(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get auction: %w", err)
			}

			if outputJSON {
				return outputAsJSON(report)
			}

			renderAuctionDetails(report)
			return nil
		},
	}
}

// newAuctionsAddCmd creates the 'add' subcommand
func newAuctionsAddCmd() *cobra.Command {
	var (
		title         string
		description   string
		tokenRef      string
		startTime     int64
		durationHours float64
		graceSeconds  int64
		minIncrement  float64
		createdBy     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new auction",
		Long: `Create a new auction. End times are derived from the start time and
duration; the settlement buffer is always applied on top of the
user-visible deadline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			svc, cleanup, err := initAuctionService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if title == "" {
				return fmt.Errorf("auction title is required (use --title)")
			}
			if durationHours <= 0 {
				return fmt.Errorf("auction duration is required (use --duration-hours)")
			}

			input := service.CreateAuctionInput{
				Title:         title,
				Description:   description,
				TokenRef:      tokenRef,
				StartTime:     startTime,
				DurationHours: durationHours,
				MinIncrement:  minIncrement,
				CreatedBy:     createdBy,
			}
			if graceSeconds >= 0 {
				input.GraceSeconds = &graceSeconds
			}

			a, err := svc.CreateAuction(ctx, input)
			if err != nil {
				return fmt.Errorf("failed to create auction: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Auction created successfully: %s (ID: %s)\n", a.Title, a.ID)
				fmt.Printf("  Status: %s\n", a.Status)
				fmt.Printf("  Closes for bidders: %s\n", formatUnix(a.UserEndTime))
				fmt.Printf("  Settlement deadline: %s\n", formatUnix(a.ActualEndTime))
			}

			if outputJSON {
				return outputAsJSON(a)
			}

			return nil
		},
	}

	// Add flags
	cmd.Flags().StringVar(&title, "title", "", "Auction title")
	cmd.Flags().StringVar(&description, "description", "", "Auction description")
	cmd.Flags().StringVar(&tokenRef, "token-ref", "", "Token reference (contract/token-id)")
	cmd.Flags().Int64Var(&startTime, "start-time", 0, "Start time as a Unix timestamp (0 = now)")
	cmd.Flags().Float64Var(&durationHours, "duration-hours", 0, "Auction duration in hours")
	cmd.Flags().Int64Var(&graceSeconds, "grace-seconds", -1, "Anti-snipe grace window in seconds (-1 = configured default)")
	cmd.Flags().Float64Var(&minIncrement, "min-increment", 0, "Minimum bid increment")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Creator recorded on the auction")

	return cmd
}

// newAuctionsCancelCmd creates the 'cancel' subcommand
func newAuctionsCancelCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cancel <auction-id>",
		Short: "Cancel an auction",
		Long:  "Cancel a scheduled or active auction. Ended and cancelled auctions cannot be cancelled again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			svc, cleanup, err := initAuctionService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			auctionID := args[0]

			// Get auction info for confirmation
			a, err := svc.GetAuction(ctx, auctionID)
			if err != nil {
				return fmt.Errorf("failed to get auction: %w", err)
			}

			// Confirm cancellation unless force flag is set
			if !force {
				fmt.Printf("Are you sure you want to cancel auction '%s' (ID: %s)? [y/N]: ", a.Title, auctionID)
				var response string
				_, err = fmt.Scanln(&response)
				if err != nil {
					// Treat empty input or EOF as "no"
					if err.Error() == "unexpected newline" || err.Error() == "EOF" {
						fmt.Println("\nCancellation aborted")
						return nil
					}
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
					fmt.Println("Cancellation aborted")
					return nil
				}
			}

			if err := svc.CancelAuction(ctx, auctionID); err != nil {
				return fmt.Errorf("failed to cancel auction: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Auction cancelled: %s\n", a.Title)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// newAuctionsImportCmd creates the 'import' subcommand
func newAuctionsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import auctions from a JSON or YAML file",
		Long: `Import auctions from a JSON or YAML document. The document is validated
against the auction import schema before any row is created, and each
auction goes through the normal create path, so end times and status are
derived fresh rather than trusted from the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			filename := args[0]

			// Validate file path to prevent path traversal attacks
			if err := validateFilePath(filename); err != nil {
				return fmt.Errorf("invalid file path: %w", err)
			}

			// Check file size before reading to prevent memory exhaustion
			fileInfo, err := os.Stat(filename)
			if err != nil {
				return fmt.Errorf("failed to stat file: %w", err)
			}
			if fileInfo.Size() > maxImportFileSize {
				return fmt.Errorf("file too large: maximum size is %d bytes (%d MB), got %d bytes",
					maxImportFileSize, maxImportFileSize/(1024*1024), fileInfo.Size())
			}

			data, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			// YAML documents are converted to JSON so one schema covers both.
			jsonData := data
			if isYAMLFile(filename) {
				jsonData, err = yamlToJSON(data)
				if err != nil {
					return fmt.Errorf("failed to parse YAML: %w", err)
				}
			}

			result, err := gojsonschema.Validate(
				gojsonschema.NewStringLoader(auction.ImportSchema),
				gojsonschema.NewBytesLoader(jsonData),
			)
			if err != nil {
				return fmt.Errorf("import document is not valid JSON: %w", err)
			}
			if !result.Valid() {
				errorColor.Println("✗ Import validation failed:")
				for _, issue := range result.Errors() {
					fmt.Printf("  - %s\n", issue.String())
				}
				return fmt.Errorf("import document failed schema validation")
			}

			var doc struct {
				Auctions []service.CreateAuctionInput `json:"auctions"`
			}
			if err := json.Unmarshal(jsonData, &doc); err != nil {
				return fmt.Errorf("failed to parse import document: %w", err)
			}

			// The document is valid; only now touch the store.
			svc, cleanup, err := initAuctionService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// Import each auction
			imported := 0
			failed := 0
			for _, input := range doc.Auctions {
				a, err := svc.CreateAuction(ctx, input)
				if err != nil {
					errorColor.Printf("✗ Failed to import auction %q: %v\n", input.Title, err)
					failed++
					continue
				}
				if !quiet {
					successColor.Printf("✓ Imported auction: %s (ID: %s)\n", a.Title, a.ID)
				}
				imported++
			}

			if !quiet {
				fmt.Printf("\nImported %d auctions, %d failed\n", imported, failed)
			}

			if failed > 0 && imported == 0 {
				return fmt.Errorf("all %d auctions failed to import", failed)
			}

			return nil
		},
	}
}

// newAuctionsExportCmd creates the 'export' subcommand
func newAuctionsExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export auctions to a JSON or YAML file",
		Long:  "Export all auctions to a JSON or YAML document. If no file is specified, output goes to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			// Validate the output path before touching the store.
			if len(args) > 0 {
				if err := validateFilePath(args[0]); err != nil {
					return fmt.Errorf("invalid file path: %w", err)
				}
			}

			svc, cleanup, err := initAuctionService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := listAllAuctions(ctx, svc)
			if err != nil {
				return fmt.Errorf("failed to list auctions: %w", err)
			}

			envelope := struct {
				ExportedAt time.Time         `json:"exported_at"`
				Count      int               `json:"count"`
				Auctions   []auction.Auction `json:"auctions"`
			}{
				ExportedAt: time.Now().UTC(),
				Count:      len(all),
				Auctions:   all,
			}

			// File extension wins when --format was not set explicitly.
			if len(args) > 0 && !cmd.Flags().Changed("format") && isYAMLFile(args[0]) {
				format = "yaml"
			}

			var data []byte
			switch format {
			case "json":
				data, err = json.MarshalIndent(envelope, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				data = append(data, '\n')
			case "yaml", "yml":
				data, err = marshalYAMLViaJSON(envelope)
				if err != nil {
					return fmt.Errorf("failed to marshal YAML: %w", err)
				}
			default:
				return fmt.Errorf("unsupported export format: %s (expected json or yaml)", format)
			}

			// Output to file or stdout
			if len(args) > 0 {
				filename := args[0]

				if err := os.WriteFile(filename, data, 0644); err != nil {
					return fmt.Errorf("failed to write file: %w", err)
				}
				if !quiet {
					successColor.Printf("✓ Exported %d auctions to %s\n", len(all), filename)
				}
			} else {
				fmt.Print(string(data))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format (json, yaml)")

	return cmd
}

// exportPageSize is how many auctions each storage round-trip fetches
// during an export.
const exportPageSize = 500

// listAllAuctions pages through the full auction set.
func listAllAuctions(ctx context.Context, svc *service.AuctionService) ([]auction.Auction, error) {
	var all []auction.Auction
	offset := 0
	for {
		page, total, err := svc.ListAuctions(ctx, storage.AuctionFilters{
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			break
		}
	}
	return all, nil
}

// initAuctionService initializes the auction service over the configured
// SQLite store. Returns the service and a cleanup function.
//
// Chain time comes from standalone RPC probes against the configured
// endpoints, never an ethclient dial: CLI invocations are short-lived and a
// failed probe degrades to the local clock the same way the server does.
func initAuctionService(ctx context.Context) (*service.AuctionService, func(), error) {
	cfg, err := config.LoadConfigFrom(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()

	sqlite, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	auctions := storage.NewSQLiteAuctionStorage(sqlite, sugar)
	bids := storage.NewSQLiteBidStorage(sqlite, sugar)

	svc := service.NewAuctionService(
		auctions,
		bids,
		storage.DisabledArchive{},
		newRPCTimeSource(cfg, sugar),
		nil, // no websocket hub in the CLI
		sugar,
		service.Options{
			MinDurationHours:    cfg.Auction.MinDurationHours,
			MaxDurationHours:    cfg.Auction.MaxDurationHours,
			DefaultGraceSeconds: cfg.Auction.DefaultGraceSeconds,
		},
	)

	cleanup := func() {
		if err := sqlite.Close(); err != nil {
			sugar.Warnf("Failed to close SQLite connection during cleanup: %v", err)
		}
		if err := logger.Sync(); err != nil {
			// Sync errors on stderr are common and can be ignored in most cases
			// but we log them for debugging purposes
			sugar.Debugf("Failed to sync logger during cleanup: %v", err)
		}
	}

	return svc, cleanup, nil
}

// rpcTimeSource resolves chain time for CLI operations by probing the
// configured endpoints in order with standalone JSON-RPC calls. The first
// accurate reading wins; when every probe fails the local clock decides,
// flagged inaccurate.
type rpcTimeSource struct {
	urls   []string
	client *http.Client
	local  *chain.Clock
	logger *zap.SugaredLogger
}

func newRPCTimeSource(cfg *config.Config, sugar *zap.SugaredLogger) *rpcTimeSource {
	var urls []string
	if cfg.Chain.RPCURL != "" {
		urls = append(urls, cfg.Chain.RPCURL)
	}
	urls = append(urls, cfg.Chain.FallbackRPCURLs...)

	timeout := cfg.Chain.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &rpcTimeSource{
		urls:   urls,
		client: &http.Client{Timeout: timeout},
		local:  chain.NewClock(nil, sugar),
		logger: sugar,
	}
}

func (s *rpcTimeSource) Now(ctx context.Context) chain.Reading {
	for _, u := range s.urls {
		if r := chain.FetchRPC(ctx, s.client, u, nil, s.logger); r.Accurate {
			return r
		}
	}
	return s.local.Now(ctx)
}

// isYAMLFile reports whether a filename carries a YAML extension.
func isYAMLFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON converts a YAML document to JSON bytes.
func yamlToJSON(data []byte) ([]byte, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// marshalYAMLViaJSON marshals v to YAML with keys taken from the JSON tags
// instead of lowercased Go field names.
func marshalYAMLViaJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// outputAsJSON outputs data as JSON to stdout.
func outputAsJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
