package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxRPCResponseSize caps how much of an RPC response body is read. Block
// headers are small; anything larger is malformed or hostile.
const maxRPCResponseSize = 1 << 20 // 1 MB

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope. Result is left raw so a
// null result can be distinguished from a decode failure.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcBlock carries the two header fields the resolver needs. Both are
// 0x-prefixed hex strings on the wire.
type rpcBlock struct {
	Timestamp string `json:"timestamp"`
	Number    string `json:"number"`
}

// FetchRPC resolves chain time by speaking raw JSON-RPC to rpcURL, for
// probes and tooling that run without an ethclient. It issues a single
// eth_getBlockByNumber("latest") call through client and degrades to the
// local clock on every failure: build or network errors, non-2xx statuses,
// decode failures, RPC-level errors, and missing or unparseable header
// fields. FetchRPC never returns an error.
//
// No timeout is applied beyond what client and ctx carry; callers own the
// deadline.
func FetchRPC(ctx context.Context, client *http.Client, rpcURL string, localNow func() time.Time, logger *zap.SugaredLogger) Reading {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if localNow == nil {
		localNow = time.Now
	}
	if client == nil {
		client = http.DefaultClient
	}

	fallback := func(outcome string, keysAndValues ...interface{}) Reading {
		logger.Warnw("Standalone chain time query failed, falling back to local clock",
			append([]interface{}{"outcome", outcome, "rpc_url", rpcURL}, keysAndValues...)...)
		return localReading(localNow)
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_getBlockByNumber",
		Params:  []interface{}{"latest", false},
		ID:      1,
	})
	if err != nil {
		return fallback("marshal_error", "error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fallback("request_error", "error", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fallback("network_error", "error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fallback("http_status", "status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRPCResponseSize))
	if err != nil {
		return fallback("read_error", "error", err)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback("decode_error", "error", err)
	}
	if envelope.Error != nil {
		return fallback("rpc_error", "code", envelope.Error.Code, "message", envelope.Error.Message)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return fallback("empty_result")
	}

	var block rpcBlock
	if err := json.Unmarshal(envelope.Result, &block); err != nil {
		return fallback("result_decode_error", "error", err)
	}
	if block.Timestamp == "" {
		return fallback("missing_timestamp")
	}

	timestamp, err := parseHexUint(block.Timestamp)
	if err != nil {
		return fallback("timestamp_parse_error", "error", err, "raw", block.Timestamp)
	}

	reading := Reading{
		Timestamp: int64(timestamp),
		Accurate:  true,
	}
	if block.Number != "" {
		if number, err := parseHexUint(block.Number); err == nil {
			reading.BlockNumber = number
		}
	}

	logger.Debugw("Resolved chain time via standalone RPC",
		"timestamp", reading.Timestamp,
		"block_number", reading.BlockNumber,
		"rpc_url", rpcURL)
	return reading
}

// parseHexUint parses a 0x-prefixed hex quantity.
func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}
