package guest

import (
	"errors"
	"fmt"
	"unsafe"
)

// arena keeps buffers handed to the host reachable until the guest copies
// them out. Calls into the host are synchronous, so every buffer the host
// allocated during a call is released when that call's response is read.
type arena struct {
	bufs map[uint32][]byte
}

func newArena() *arena {
	return &arena{bufs: make(map[uint32][]byte)}
}

func (a *arena) alloc(size uint32) uint32 {
	buf := make([]byte, max(size, 1))
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	a.bufs[ptr] = buf
	return ptr
}

func (a *arena) take(ptr, size uint32) ([]byte, error) {
	buf, ok := a.bufs[ptr]
	if !ok {
		return nil, fmt.Errorf("no buffer allocated at %d", ptr)
	}
	delete(a.bufs, ptr)
	if int(size) > len(buf) {
		return nil, fmt.Errorf("response of %d bytes overflows %d byte buffer", size, len(buf))
	}
	return buf[:size:size], nil
}

// response interprets the result of query_bridge: n bytes of response, or
// -n bytes of error message, written to the buffer at destPtr.
func (a *arena) response(n int32, destPtr uint32) ([]byte, error) {
	defer clear(a.bufs)

	switch {
	case n < 0:
		msg, err := a.take(destPtr, uint32(-n))
		if err != nil {
			return nil, fmt.Errorf("query_bridge failed: %w", err)
		}
		return nil, fmt.Errorf("query_bridge failed: %s", msg)
	case n == 0:
		return nil, errors.New("query_bridge returned no response")
	}
	return a.take(destPtr, uint32(n))
}
