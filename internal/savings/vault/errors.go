package vault

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// broadcastError is a SendTransaction failure after which the node may
// still hold the signed transaction.
type broadcastError struct {
	hash string
	err  error
}

func (e *broadcastError) Error() string { return "broadcast " + e.hash + ": " + e.err.Error() }

func (e *broadcastError) Unwrap() error { return e.err }

// ambiguous reports whether a send error leaves the broadcast outcome
// unknown: the request may have reached the node before the caller's
// deadline or the connection broke. A JSON-RPC error reply means the node
// refused the transaction.
func ambiguous(err error) bool {
	var re rpc.Error
	if errors.As(err, &re) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// BreakerHealthy classifies vault RPC errors for the circuit breaker. Only
// transport faults count as failures: a node that answers with a JSON-RPC
// error, a reverted call and a caller that runs out of time all leave the
// endpoint healthy.
func BreakerHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var re rpc.Error
	if errors.As(err, &re) {
		return true
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
