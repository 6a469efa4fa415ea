// Package id generates time-sortable identifiers for sessions, annotations
// and journal rows.
package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID for the current time.
func New() string { return At(time.Now()) }

// At returns a ULID stamped with t. IDs from the same millisecond still sort
// in generation order.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	v, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		// time before 1970 or entropy overflow within one millisecond
		panic(err)
	}
	return v.String()
}

// WithPrefix returns "<prefix>_<ulid>" in lower case, e.g. "ses_01j...".
func WithPrefix(prefix string) string {
	return prefix + "_" + strings.ToLower(New())
}

// Time extracts the timestamp from an id produced by New or At. Prefixed ids
// are accepted.
func Time(s string) (time.Time, bool) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	v, err := ulid.ParseStrict(strings.ToUpper(s))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(v.Time()).UTC(), true
}
