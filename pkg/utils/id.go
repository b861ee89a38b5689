package utils

import (
	"github.com/lithammer/shortuuid/v3"
)

const (
	TrackPrefix   = "TR_"
	SessionPrefix = "S_"
)

func NewGuid(prefix string) string {
	return prefix + shortuuid.New()
}

// NewStreamSuffix returns the random tail of a published stream id.
func NewStreamSuffix() string {
	return shortuuid.New()[:8]
}
