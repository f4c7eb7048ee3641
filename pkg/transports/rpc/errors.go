package rpc

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "dial", "send", "call")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// revertCode is the JSON-RPC error code nodes use for execution reverts.
const revertCode = 3

// asRevert reports whether err is a node-side execution revert and returns
// the revert data, if the node attached any.
func asRevert(err error) ([]byte, bool) {
	var rpcErr gethrpc.Error
	if !errors.As(err, &rpcErr) {
		return nil, false
	}
	if rpcErr.ErrorCode() != revertCode && !strings.Contains(strings.ToLower(rpcErr.Error()), "revert") {
		return nil, false
	}

	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				return data, true
			}
		}
	}
	return nil, true
}
