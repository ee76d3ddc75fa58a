// Package connector exchanges the ambient workspace identity for a
// short-lived forge access token issued by the connectors broker.
package connector

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is(err, connector.ErrBrokerUnavailable) to check.
var (
	// ErrAuthConfiguration means the environment carries no identity
	// credential or no broker hostname, so no exchange can be attempted.
	ErrAuthConfiguration = errors.New("connector: no identity credential configured")

	// ErrBrokerUnavailable covers every failed exchange: transport errors,
	// non-2xx answers, undecodable bodies and responses without a token.
	ErrBrokerUnavailable = errors.New("connector: token broker unavailable")
)

// BrokerError is returned when the broker answers with a non-2xx status.
type BrokerError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *BrokerError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("connector: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("connector: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}
