// Package wasihost exposes the bridge protocol to WebAssembly guests as
// the host function env.query_bridge.
package wasihost

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tomyedwab/querybridge/bridge"
)

const (
	// ModuleName is the import module guests link against.
	ModuleName = "env"
	// FunctionName is the host function guests call with a protocol request.
	FunctionName = "query_bridge"
	// AllocFunction is the guest export the host uses to place responses
	// in guest memory.
	AllocFunction = "alloc_bytes"
)

// Host serves protocol requests from guest modules.
type Host struct {
	bridge *bridge.Bridge
	logger *slog.Logger
}

// New creates a Host. A nil logger uses slog.Default().
func New(b *bridge.Bridge, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{bridge: b, logger: logger.With("component", "wasihost")}
}

// Instantiate registers the host module on r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().WithFunc(h.queryBridge).Export(FunctionName).
		Instantiate(ctx)
}

// Run instantiates WASI, the host module and the guest, calling the
// guest's _initialize export, and keeps the guest alive until ctx is done.
func (h *Host) Run(ctx context.Context, wasm []byte) error {
	r := wazero.NewRuntime(ctx)
	defer r.Close(context.WithoutCancel(ctx))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	if _, err := h.Instantiate(ctx, r); err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}

	_, err := r.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().
		WithStartFunctions("_initialize").
		WithStdout(os.Stdout).
		WithStderr(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to instantiate guest: %w", err)
	}
	h.logger.Info("Guest module started")

	<-ctx.Done()
	h.logger.Info("Guest module stopped")
	return nil
}

// queryBridge reads a request from guest memory, dispatches it and writes
// the response into a guest allocation whose address is stored at destPtr.
// It returns the response length, or the negated length of an error
// message placed the same way.
func (h *Host) queryBridge(ctx context.Context, m api.Module, reqPtr, reqLen, destPtr uint32) int32 {
	request, ok := m.Memory().Read(reqPtr, reqLen)
	if !ok {
		return h.writeError(ctx, m, destPtr, fmt.Errorf("request out of range: %d+%d", reqPtr, reqLen))
	}

	response, err := h.bridge.HandleRequest(ctx, request)
	if err != nil {
		return h.writeError(ctx, m, destPtr, err)
	}
	n, err := writeBytes(ctx, m, destPtr, response)
	if err != nil {
		h.logger.Error("Failed to write response to guest", "error", err)
		return 0
	}
	return n
}

func (h *Host) writeError(ctx context.Context, m api.Module, destPtr uint32, cause error) int32 {
	h.logger.Error("Error handling guest request", "error", cause)
	n, err := writeBytes(ctx, m, destPtr, []byte(cause.Error()))
	if err != nil {
		h.logger.Error("Failed to write error to guest", "error", err)
		return 0
	}
	return -n
}

// writeBytes copies data into a fresh guest allocation and stores its
// address at destPtr.
func writeBytes(ctx context.Context, m api.Module, destPtr uint32, data []byte) (int32, error) {
	alloc := m.ExportedFunction(AllocFunction)
	if alloc == nil {
		return 0, fmt.Errorf("guest does not export %s", AllocFunction)
	}
	result, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w", AllocFunction, err)
	}
	if len(result) != 1 {
		return 0, fmt.Errorf("%s returned %d results, expected 1", AllocFunction, len(result))
	}
	ptr := uint32(result[0])
	if !m.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("memory write out of range: %d+%d", ptr, len(data))
	}
	if !m.Memory().WriteUint32Le(destPtr, ptr) {
		return 0, fmt.Errorf("destination pointer out of range: %d", destPtr)
	}
	return int32(len(data)), nil
}
