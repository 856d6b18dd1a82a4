// Package framekey defines the identity of one cached decoded frame.
package framekey

import "fmt"

// Key identifies one cached RGBA buffer: a frame index at a given
// resolution. The same frame decoded at two resolutions is two distinct
// cache entries.
type Key struct {
	Index  uint64
	Width  uint32
	Height uint32
}

// ByteSize returns the predicted RGBA buffer size for this key, row-major
// with no padding.
func (k Key) ByteSize() uint64 {
	return uint64(k.Width) * uint64(k.Height) * 4
}

func (k Key) String() string {
	return fmt.Sprintf("frame=%d %dx%d", k.Index, k.Width, k.Height)
}
