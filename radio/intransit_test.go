package radio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAllocateHandleOverflow(t *testing.T) {
	tbl := newInTransitTable()
	seen := make(map[uint8]bool)
	for i := 0; i < maxInTransit; i++ {
		h, err := tbl.allocateHandle(&Packet{}, i)
		require.NoError(t, err)
		require.False(t, seen[h], "handle reused while still live")
		require.NotZero(t, h)
		seen[h] = true
	}
	_, err := tbl.allocateHandle(&Packet{}, "overflow")
	require.ErrorIs(t, err, ErrOverflow)

	// spec.md §8: overflow must not corrupt existing entries.
	require.Equal(t, maxInTransit, tbl.len())
}

func TestTakeRemovesAndErrorsOnUnknown(t *testing.T) {
	tbl := newInTransitTable()
	h, err := tbl.allocateHandle(&Packet{}, "ctx-a")
	require.NoError(t, err)

	pkt, ctx, err := tbl.take(h)
	require.NoError(t, err)
	require.NotNil(t, pkt)
	require.Equal(t, "ctx-a", ctx)

	_, _, err = tbl.take(h)
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestHandleCollisionScenario(t *testing.T) {
	// spec.md §8 scenario 4: two transmits submitted before either confirms
	// must get distinct handles, and each confirm must route back to its
	// own context without cross-over.
	tbl := newInTransitTable()
	h1, err := tbl.allocateHandle(&Packet{}, "first")
	require.NoError(t, err)
	h2, err := tbl.allocateHandle(&Packet{}, "second")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	_, ctx1, err := tbl.take(h1)
	require.NoError(t, err)
	require.Equal(t, "first", ctx1)

	_, ctx2, err := tbl.take(h2)
	require.NoError(t, err)
	require.Equal(t, "second", ctx2)
}

// TestLiveHandleInvariant is the rapid-property form of spec.md §8: "for all
// sequences of allocate_handle/take, the set of live handles never exceeds
// 7 and no handle is returned by two allocate_handle calls without an
// intervening take."
func TestLiveHandleInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tbl := newInTransitTable()
		live := make(map[uint8]bool)

		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "allocate") || len(live) == 0 {
				h, err := tbl.allocateHandle(&Packet{}, i)
				if err != nil {
					rt.Logf("allocate rejected at %d live handles: %v", len(live), err)
					continue
				}
				if live[h] {
					rt.Fatalf("handle %d reused while still live", h)
				}
				live[h] = true
				if len(live) > maxInTransit {
					rt.Fatalf("live handle count exceeded capacity: %d", len(live))
				}
			} else {
				var victim uint8
				for h := range live {
					victim = h
					break
				}
				_, _, err := tbl.take(victim)
				require.NoError(rt, err)
				delete(live, victim)
			}
		}
	})
}
