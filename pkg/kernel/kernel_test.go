package kernel

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGrid executes every block of the grid sequentially, the way a
// single-SM device would.
func runGrid(k Kernel, in []byte, width, height, blockDim int) []byte {
	out := make([]byte, width*height)
	cfg := Configure(width, height, blockDim)
	a := Args{In: in, Out: out, Width: width, Height: height}
	for by := 0; by < cfg.Grid.Y; by++ {
		for bx := 0; bx < cfg.Grid.X; bx++ {
			k.RunBlock(a, cfg, bx, by)
		}
	}
	return out
}

func randomImage(t *testing.T, width, height int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	in := make([]byte, width*height*3)
	_, err := rng.Read(in)
	require.NoError(t, err)
	return in
}

func TestLuminanceGoldens(t *testing.T) {
	cases := []struct {
		name    string
		r, g, b byte
		want    byte
	}{
		{"red", 255, 0, 0, 76},
		{"green", 0, 255, 0, 150},
		{"blue", 0, 0, 255, 29},
		{"white", 255, 255, 255, 255},
		{"black", 0, 0, 0, 0},
		{"mid grey", 128, 128, 128, 128},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := []byte{tc.r, tc.g, tc.b}
			for _, v := range []Variant{Naive, SharedMemory} {
				out := runGrid(ForVariant(v), in, 1, 1, DefaultBlockDim)
				assert.Equal(t, tc.want, out[0], "variant %s", v)
			}
		})
	}
}

func TestVariantsByteIdentical(t *testing.T) {
	sizes := []struct{ w, h int }{
		{1, 1},
		{5, 3},
		{16, 16},
		{17, 17}, // partial edge blocks on both axes
		{33, 40},
		{100, 1},
		{1, 100},
	}
	for _, sz := range sizes {
		t.Run(fmt.Sprintf("%dx%d", sz.w, sz.h), func(t *testing.T) {
			in := randomImage(t, sz.w, sz.h, int64(sz.w*1000+sz.h))
			naive := runGrid(NaiveKernel{}, in, sz.w, sz.h, DefaultBlockDim)
			shared := runGrid(SharedMemoryKernel{}, in, sz.w, sz.h, DefaultBlockDim)
			require.Len(t, naive, sz.w*sz.h)
			assert.Equal(t, naive, shared)
		})
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	in := randomImage(t, 37, 29, 7)
	first := runGrid(SharedMemoryKernel{}, in, 37, 29, DefaultBlockDim)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, runGrid(SharedMemoryKernel{}, in, 37, 29, DefaultBlockDim))
	}
}

func TestConfigureCoversImage(t *testing.T) {
	cases := []struct {
		w, h, block  int
		gridX, gridY int
	}{
		{16, 16, 16, 1, 1},
		{17, 17, 16, 2, 2},
		{512, 512, 16, 32, 32},
		{1, 1, 16, 1, 1},
		{100, 60, 8, 13, 8},
	}
	for _, tc := range cases {
		cfg := Configure(tc.w, tc.h, tc.block)
		assert.Equal(t, tc.gridX, cfg.Grid.X, "%dx%d block %d", tc.w, tc.h, tc.block)
		assert.Equal(t, tc.gridY, cfg.Grid.Y, "%dx%d block %d", tc.w, tc.h, tc.block)
		assert.GreaterOrEqual(t, cfg.Grid.X*cfg.Block.X, tc.w)
		assert.GreaterOrEqual(t, cfg.Grid.Y*cfg.Block.Y, tc.h)
	}
}

func TestConfigureDefaultBlockDim(t *testing.T) {
	cfg := Configure(64, 64, 0)
	assert.Equal(t, DefaultBlockDim, cfg.Block.X)
	assert.Equal(t, DefaultBlockDim, cfg.Block.Y)
}

func TestParseVariant(t *testing.T) {
	for s, want := range map[string]Variant{
		"naive": Naive, "": Naive,
		"shared": SharedMemory, "shared-memory": SharedMemory, "optimized": SharedMemory,
	} {
		got, err := ParseVariant(s)
		require.NoError(t, err, "%q", s)
		assert.Equal(t, want, got, "%q", s)
	}
	_, err := ParseVariant("cubic")
	assert.Error(t, err)
}

func benchmarkVariant(b *testing.B, v Variant, size int) {
	rng := rand.New(rand.NewSource(1))
	in := make([]byte, size*size*3)
	rng.Read(in)
	k := ForVariant(v)
	b.SetBytes(int64(len(in)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runGrid(k, in, size, size, DefaultBlockDim)
	}
}

func BenchmarkNaive512(b *testing.B)  { benchmarkVariant(b, Naive, 512) }
func BenchmarkNaive2048(b *testing.B) { benchmarkVariant(b, Naive, 2048) }
func BenchmarkShared512(b *testing.B) { benchmarkVariant(b, SharedMemory, 512) }
func BenchmarkShared2048(b *testing.B) {
	benchmarkVariant(b, SharedMemory, 2048)
}
