// Package id provides prefixed ULID generation for log-friendly identities.
//
// ULIDs are lexicographically sortable by creation time, and the type prefix
// (client_*, frame_*, req_*) makes log lines readable without cross-
// referencing.
package id

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ClientID identifies one connected broadcast client.
type ClientID string

// FrameID identifies one ingested detection frame.
type FrameID string

// RequestID identifies one API request.
type RequestID string

const (
	ClientPrefix  = "client"
	FramePrefix   = "frame"
	RequestPrefix = "req"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// NewClientID generates a new broadcast client identifier.
func NewClientID() ClientID {
	return ClientID(ClientPrefix + "_" + newULID())
}

// NewFrameID generates a new frame identifier.
func NewFrameID() FrameID {
	return FrameID(FramePrefix + "_" + newULID())
}

// NewRequestID generates a new request identifier.
func NewRequestID() RequestID {
	return RequestID(RequestPrefix + "_" + newULID())
}

// HasPrefix reports whether raw carries the given type prefix.
func HasPrefix(raw, prefix string) bool {
	return strings.HasPrefix(raw, prefix+"_")
}
