package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bidhouse/auction"
	"bidhouse/service"

	"github.com/fatih/color"
)

// renderAuctionsTable displays auctions in a formatted table
func renderAuctionsTable(auctions []auction.Auction, total int64) {
	if len(auctions) == 0 {
		warningColor.Println("No auctions found")
		return
	}

	// Print header
	headerColor.Println("AUCTIONS")
	headerColor.Println(strings.Repeat("=", 120))
	fmt.Printf("%-10s %-30s %-11s %-24s %-24s %-8s %s\n",
		"ID", "Title", "Status", "Start", "Closes (bidders)", "Grace", "Min Incr")
	fmt.Println(strings.Repeat("-", 120))

	// Print rows
	for _, a := range auctions {
		// Short ID (first 8 chars)
		shortID := a.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		// Truncate title if too long
		title := a.Title
		if len(title) > 29 {
			title = title[:26] + "..."
		}

		fmt.Printf("%-10s %-30s %-11s %-24s %-24s %-8s %s\n",
			shortID, title, string(a.Status),
			formatUnix(a.StartTime), formatUnix(a.UserEndTime),
			fmt.Sprintf("%ds", a.GraceSeconds), formatAmount(a.MinIncrement))
	}

	fmt.Println(strings.Repeat("=", 120))
	fmt.Printf("\nShowing %d of %d auctions\n", len(auctions), total)
}

// renderAuctionDetails displays an auction's full status report
func renderAuctionDetails(report *service.StatusReport) {
	a := report.Auction

	headerColor.Println("═══════════════════════════════════════════════════════════════")
	headerColor.Printf("  Auction Details: %s\n", a.Title)
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	// Basic information
	printSection("Basic Information")
	printField("ID", a.ID)
	printField("Title", a.Title)
	printField("Description", a.Description)
	printField("Token Ref", a.TokenRef)
	printField("Status", formatStatus(a.Status))
	printField("Created By", a.CreatedBy)
	fmt.Println()

	// Timing
	printSection("Timing")
	printField("Start Time", formatUnix(a.StartTime))
	printField("Closes (bidders)", formatUnix(a.UserEndTime))
	printField("Settlement Deadline", formatUnix(a.ActualEndTime))
	printField("Settlement Buffer", fmt.Sprintf("%ds", a.BufferSeconds))
	printField("Grace Window", fmt.Sprintf("%ds", a.GraceSeconds))
	printField("Countdown", report.Countdown.UserDisplay)
	printField("Chain Time", fmt.Sprintf("%s (%s)",
		formatUnix(report.ChainTime.Timestamp), formatClockSource(report.ChainTime.Accurate)))
	fmt.Println()

	// Bidding
	printSection("Bidding")
	if report.Decision.CanBid {
		printField("Accepting Bids", color.New(color.FgGreen).Sprint("Yes"))
		printField("Time Remaining", fmt.Sprintf("%ds", report.Decision.TimeRemaining))
	} else {
		printField("Accepting Bids", color.New(color.FgRed).Sprint("No"))
		printField("Close Reason", report.Decision.Reason)
	}
	printField("Min Increment", formatAmount(a.MinIncrement))
	printField("Bid Count", fmt.Sprintf("%d", report.BidCount))
	if report.HighBid != nil {
		printField("High Bid", fmt.Sprintf("%s by %s at %s",
			formatAmount(report.HighBid.Amount), report.HighBid.Bidder,
			formatTime(report.HighBid.CreatedAt)))
	}
	fmt.Println()

	// Timestamps
	printSection("Timestamps")
	printField("Created At", formatTime(a.CreatedAt))
	printField("Updated At", formatTime(a.UpdatedAt))
	fmt.Println()
}

// renderProbeResults displays chain time probe results in a formatted table
func renderProbeResults(results []probeResult) {
	if len(results) == 0 {
		warningColor.Println("No endpoints probed")
		return
	}

	headerColor.Println("CHAIN TIME")
	headerColor.Println(strings.Repeat("=", 120))
	fmt.Printf("%-45s %-8s %-12s %-24s %-10s %s\n",
		"Endpoint", "Source", "Block", "Chain Time", "Drift", "Latency")
	fmt.Println(strings.Repeat("-", 120))

	for _, r := range results {
		endpoint := r.RPCURL
		if len(endpoint) > 44 {
			endpoint = endpoint[:41] + "..."
		}

		block := "-"
		drift := "-"
		if r.Accurate {
			block = strconv.FormatUint(r.BlockNumber, 10)
			drift = formatDrift(r.DriftSeconds)
		}

		fmt.Printf("%-45s %-8s %-12s %-24s %-10s %dms\n",
			endpoint, formatClockSourcePlain(r.Accurate), block,
			formatUnix(r.Timestamp), drift, r.LatencyMS)
	}

	fmt.Println(strings.Repeat("=", 120))
	fmt.Printf("\nLocal clock: %s\n", formatUnix(time.Now().Unix()))
}

// printSection prints a section header
func printSection(title string) {
	headerColor.Printf("  %s\n", title)
	headerColor.Println("  " + strings.Repeat("─", len(title)))
}

// printField prints a key-value field
func printField(key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Printf("  %-25s %s\n", key+":", value)
}

// formatStatus returns a colored auction status string
func formatStatus(status auction.Status) string {
	switch status {
	case auction.StatusActive:
		return color.New(color.FgGreen).Sprint("active")
	case auction.StatusScheduled:
		return color.New(color.FgCyan).Sprint("scheduled")
	case auction.StatusEnded:
		return color.New(color.FgYellow).Sprint("ended")
	case auction.StatusCancelled:
		return color.New(color.FgRed).Sprint("cancelled")
	default:
		return string(status)
	}
}

// formatClockSource returns a colored label for which clock produced a reading
func formatClockSource(accurate bool) string {
	if accurate {
		return color.New(color.FgGreen).Sprint("chain")
	}
	return color.New(color.FgYellow).Sprint("local fallback")
}

// formatClockSourcePlain returns a plain clock source label (no color codes)
func formatClockSourcePlain(accurate bool) string {
	if accurate {
		return "chain"
	}
	return "local"
}

// formatDrift renders a signed drift in seconds
func formatDrift(seconds float64) string {
	return fmt.Sprintf("%+.1fs", seconds)
}

// formatAmount renders a bid amount without trailing zeros
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatTime formats a timestamp
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatUnix formats a Unix timestamp in UTC
func formatUnix(ts int64) string {
	if ts == 0 {
		return "(not set)"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

// formatTimeSince formats time since a timestamp
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}

	duration := time.Since(t)
	if duration < time.Minute {
		return fmt.Sprintf("%ds ago", int(duration.Seconds()))
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
