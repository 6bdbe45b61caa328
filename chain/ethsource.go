package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// EthSource resolves headers through a go-ethereum RPC client.
type EthSource struct {
	client *ethclient.Client
}

// Dial connects to an Ethereum JSON-RPC endpoint and returns a header
// source backed by it.
func Dial(ctx context.Context, rawurl string) (*EthSource, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain endpoint: %w", err)
	}
	return &EthSource{client: client}, nil
}

// NewEthSource wraps an existing client. Used when the caller manages the
// connection lifecycle.
func NewEthSource(client *ethclient.Client) *EthSource {
	return &EthSource{client: client}
}

// LatestHeader fetches the head block header.
func (s *EthSource) LatestHeader(ctx context.Context) (*Header, error) {
	h, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest header: %w", err)
	}
	if h == nil {
		return nil, fmt.Errorf("chain returned nil header")
	}
	header := &Header{Time: h.Time}
	if h.Number != nil {
		header.Number = h.Number.Uint64()
	}
	return header, nil
}

// Close releases the underlying RPC connection.
func (s *EthSource) Close() {
	s.client.Close()
}

var _ HeaderSource = (*EthSource)(nil)
