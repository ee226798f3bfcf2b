package wasihost

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/tomyedwab/querybridge/bridge"
	"github.com/tomyedwab/querybridge/bridge/types"
	"github.com/tomyedwab/querybridge/providers"
	"github.com/tomyedwab/querybridge/value"
)

// fakeMemory is a flat byte slice standing in for guest linear memory.
type fakeMemory struct {
	api.Memory
	buf []byte
}

func (m *fakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) WriteUint32Le(offset, v uint32) bool {
	if uint64(offset)+4 > uint64(len(m.buf)) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return true
}

// bumpAlloc hands out consecutive regions starting at next.
type bumpAlloc struct {
	api.Function
	next uint32
	err  error
}

func (a *bumpAlloc) Call(_ context.Context, params ...uint64) ([]uint64, error) {
	if a.err != nil {
		return nil, a.err
	}
	ptr := a.next
	a.next += uint32(params[0])
	return []uint64{uint64(ptr)}, nil
}

type fakeModule struct {
	api.Module
	mem   *fakeMemory
	alloc *bumpAlloc
}

func (m *fakeModule) Memory() api.Memory { return m.mem }

func (m *fakeModule) ExportedFunction(name string) api.Function {
	if name == AllocFunction && m.alloc != nil {
		return m.alloc
	}
	return nil
}

const (
	destPtr  = 8
	reqPtr   = 64
	heapBase = 16 * 1024
)

func newFakeModule() *fakeModule {
	return &fakeModule{
		mem:   &fakeMemory{buf: make([]byte, 64*1024)},
		alloc: &bumpAlloc{next: heapBase},
	}
}

func setupTestHost(t *testing.T) (*Host, string) {
	registry := providers.NewRegistry(nil)
	require.True(t, registry.RegisterDriver("sqlite3", "sqlite3"))
	b := bridge.New(bridge.Config{Providers: registry})
	t.Cleanup(b.Close)
	return New(b, nil), filepath.Join(t.TempDir(), "guest.db")
}

// call places req in guest memory, invokes the host function and returns
// the bytes it wrote back along with the raw return value.
func call(t *testing.T, h *Host, m *fakeModule, req []byte) ([]byte, int32) {
	require.True(t, m.mem.Write(reqPtr, req))
	n := h.queryBridge(context.Background(), m, reqPtr, uint32(len(req)), destPtr)

	ptr := binary.LittleEndian.Uint32(m.mem.buf[destPtr:])
	size := n
	if size < 0 {
		size = -size
	}
	out, ok := m.mem.Read(ptr, uint32(size))
	require.True(t, ok)
	return out, n
}

func TestQueryBridgeRoundTrip(t *testing.T) {
	h, dbPath := setupTestHost(t)
	m := newFakeModule()

	req, err := json.Marshal(types.Request{
		Command:          types.CommandScalar,
		Provider:         "sqlite3",
		ConnectionString: dbPath,
		SQL:              "SELECT :answer",
		Params:           value.Params{"answer": value.Int(42)},
	})
	require.NoError(t, err)

	out, n := call(t, h, m, req)
	require.Greater(t, n, int32(0))

	var resp types.ScalarResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, value.Int(42), resp.Value)
}

func TestQueryBridgeReportsFailuresInResponse(t *testing.T) {
	h, _ := setupTestHost(t)
	m := newFakeModule()

	out, n := call(t, h, m, []byte(`{"command":"commit","tx_handle":"nope"}`))
	require.Greater(t, n, int32(0))

	var resp types.TransactionResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "invalid_handle", resp.ErrorType)
}

func TestQueryBridgeRequestOutOfRange(t *testing.T) {
	h, _ := setupTestHost(t)
	m := newFakeModule()

	n := h.queryBridge(context.Background(), m, 60*1024, 8*1024, destPtr)
	require.Less(t, n, int32(0))

	ptr := binary.LittleEndian.Uint32(m.mem.buf[destPtr:])
	msg, ok := m.mem.Read(ptr, uint32(-n))
	require.True(t, ok)
	assert.Contains(t, string(msg), "request out of range")
}

func TestQueryBridgeWithoutAllocator(t *testing.T) {
	h, _ := setupTestHost(t)
	m := newFakeModule()
	m.alloc = nil

	assert.Equal(t, int32(0), h.queryBridge(context.Background(), m, reqPtr, 2, destPtr))
}

func TestWriteBytesAllocFailure(t *testing.T) {
	m := newFakeModule()
	m.alloc.err = errors.New("out of memory")

	_, err := writeBytes(context.Background(), m, destPtr, []byte("x"))
	assert.ErrorContains(t, err, "out of memory")
}

func TestRunRejectsInvalidModule(t *testing.T) {
	h, _ := setupTestHost(t)

	err := h.Run(context.Background(), []byte("not wasm"))
	assert.ErrorContains(t, err, "failed to instantiate guest")
}
