package lbm

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// IDGenerator abstracts opaque id generation for testability.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator implements IDGenerator using random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

var (
	_ Clock       = RealClock{}
	_ IDGenerator = UUIDGenerator{}
)
