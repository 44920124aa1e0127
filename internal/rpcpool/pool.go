// Package rpcpool holds process-wide, lazily-initialized, reference-counted
// RPC/HTTP handles keyed by chain name. Adapter tasks clone a handle cheaply
// instead of dialing their own connection; the handle enforces its own rate
// limit and retry policy so adapters don't have to.
package rpcpool

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// EVMHandle is a shared, rate-limited handle to an EVM chain's JSON-RPC
// endpoint. Created on first use per chain name, held until process exit.
type EVMHandle struct {
	Chain      string
	Client     *ethclient.Client
	limiter    *rate.Limiter
	refCount   int32
}

// WithRetry runs fn under the handle's rate limiter, retrying transient
// network failures with exponential backoff.
func (h *EVMHandle) WithRetry(ctx context.Context, fn func() error) error {
	const maxRetries = 5
	backoff := 500 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryableRPCError(err) {
			return err
		}
		if i == maxRetries-1 {
			return fmt.Errorf("max retries reached: %w", err)
		}
		wait := backoff * time.Duration(1<<i)
		select {
		case <-time.After(wait):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func isRetryableRPCError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"timeout", "deadline exceeded", "rate limit", "too many requests", "connection reset", "unavailable", "eof"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// Registry lazily constructs and reference-counts one EVMHandle per chain.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*EVMHandle
	// EnvVar maps a chain name to the environment variable holding its
	// JSON-RPC endpoint, e.g. "ethereum" -> "ETHEREUM_NODE_URL".
	EnvVar map[string]string
}

// NewRegistry builds a registry with the default chain/env-var bindings
// named in spec.md §6.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*EVMHandle),
		EnvVar: map[string]string{
			"ethereum":  "ETHEREUM_NODE_URL",
			"arbitrum":  "ARBITRUM_NODE_URL",
			"optimism":  "OPTIMISM_NODE_URL",
			"polygon":   "POLYGON_NODE_URL",
			"avalanche": "AVALANCHE_NODE_URL",
		},
	}
}

// Acquire returns the shared handle for chain, dialing it on first use.
// Fails fast if the chain's env var is missing, per spec.md §9.
func (r *Registry) Acquire(chain string) (*EVMHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[chain]; ok {
		h.refCount++
		return h, nil
	}

	envKey, ok := r.EnvVar[chain]
	if !ok {
		return nil, fmt.Errorf("rpcpool: unknown chain %q", chain)
	}
	url := os.Getenv(envKey)
	if url == "" {
		return nil, fmt.Errorf("rpcpool: missing required env var %s for chain %q", envKey, chain)
	}

	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rpcpool: dial %s: %w", chain, err)
	}

	h := &EVMHandle{
		Chain:    chain,
		Client:   client,
		limiter:  limiterFromEnv(chain),
		refCount: 1,
	}
	r.handles[chain] = h
	return h, nil
}

// Release decrements the handle's reference count. Handles are held for
// the process lifetime regardless (connections are cheap to keep open), so
// this only exists to make adapter lifecycle bookkeeping explicit and
// testable; it does not close the underlying client.
func (r *Registry) Release(chain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[chain]; ok && h.refCount > 0 {
		h.refCount--
	}
}

// Close closes every dialed handle. Called once at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.handles {
		h.Client.Close()
	}
}

func limiterFromEnv(chain string) *rate.Limiter {
	upper := strings.ToUpper(chain)
	rps := envFloat(upper+"_RPC_RPS", 10)
	if rps <= 0 {
		return nil
	}
	burst := int(envFloat(upper+"_RPC_BURST", rps))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
