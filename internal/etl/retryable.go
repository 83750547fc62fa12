package etl

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

// SourceRetryable is the broad classifier used for relational reads:
// anything may be a transient driver or connection problem except
// cancellation, bad payloads and errors where the server has answered
// authoritatively (bad SQL, missing objects, auth, bad data).
func SourceRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var malformed *MalformedError
	if errors.As(err, &malformed) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "28", "42":
			return false
		}
	}
	return true
}

// SinkRetryable only retries connectivity failures.
func SinkRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var partial *PartialWriteError
	var rejected *SchemaRejectedError
	if errors.As(err, &partial) || errors.As(err, &rejected) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
