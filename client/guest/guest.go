//go:build wasip1

// Package guest provides the client transport for code compiled to
// GOOS=wasip1 and run under the querybridge WASI host.
package guest

import (
	"context"
	"runtime"
	"unsafe"

	"github.com/tomyedwab/querybridge/client"
)

//go:wasmimport env query_bridge
func queryBridge(reqPtr, reqLen, destPtr uint32) int32

var pinned = newArena()

//go:wasmexport alloc_bytes
func allocBytes(size uint32) uint32 {
	return pinned.alloc(size)
}

// Transport sends a request through the host's query_bridge function.
func Transport(_ context.Context, payload []byte) ([]byte, error) {
	var destPtr uint32
	var reqPtr uint32
	if len(payload) > 0 {
		reqPtr = uint32(uintptr(unsafe.Pointer(&payload[0])))
	}

	n := queryBridge(reqPtr, uint32(len(payload)), uint32(uintptr(unsafe.Pointer(&destPtr))))
	runtime.KeepAlive(payload)
	return pinned.response(n, destPtr)
}

// New returns a client that talks to the host.
func New() *client.Client {
	return client.New(Transport)
}
