package radio

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
	"github.com/Cascoda/ca821x-posix-thread/thread"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestSynchronizerDeviceTableRebuild(t *testing.T) {
	// spec.md §8 round-trip law: N children + M routers (N+M<=5) yields
	// exactly N+M descriptor writes and one entry-count write equal to N+M.
	stack := thread.NewMemStack(thread.RoleRouter, 0xFACE, 15)
	stack.AddChild(thread.Neighbor{ExtAddr: 0x0100000000000001, ShortAddr: 1})
	stack.AddChild(thread.Neighbor{ExtAddr: 0x0100000000000002, ShortAddr: 2})
	stack.AddRouter(thread.Neighbor{ExtAddr: 0x0100000000000003, ShortAddr: 3})
	stack.SetKeySequence(5)
	stack.SetKey(5, [16]byte{1})

	client := coproc.NewFakeClient()
	s := newSynchronizer(stack, client, testLogger())
	s.rebuild()

	entries := client.DeviceTableEntries()
	require.Len(t, entries, 3)

	count, status := client.MlmeGet(coproc.AttrDeviceTableEntries, 0)
	require.Equal(t, coproc.StatusSuccess, status)
	require.Equal(t, uint8(3), count)
}

func TestSynchronizerChildEmitsParentOnly(t *testing.T) {
	stack := thread.NewMemStack(thread.RoleChild, 0xFACE, 15)
	stack.SetParent(thread.Neighbor{ExtAddr: 0x0100000000000099, ShortAddr: 9})

	client := coproc.NewFakeClient()
	s := newSynchronizer(stack, client, testLogger())
	s.rebuild()

	entries := client.DeviceTableEntries()
	require.Len(t, entries, 1)
	require.Equal(t, reverseBytes(0x0100000000000099), entries[0].ExtAddr)
}

func TestSynchronizerSkipsZeroKeySequenceGeneration(t *testing.T) {
	stack := thread.NewMemStack(thread.RoleRouter, 0xFACE, 15)
	stack.SetKeySequence(1) // previous generation would be sequence 0, must be skipped
	stack.SetKey(1, [16]byte{1})
	stack.SetKey(2, [16]byte{2})

	client := coproc.NewFakeClient()
	s := newSynchronizer(stack, client, testLogger())
	s.rebuild()

	count, status := client.MlmeGet(coproc.AttrKeyTableEntries, 0)
	require.Equal(t, coproc.StatusSuccess, status)
	require.Equal(t, uint8(2), count) // current (1) and next (2), previous (0) skipped
}

func TestSynchronizerRoleChangeToRouterStartsPAN(t *testing.T) {
	stack := thread.NewMemStack(thread.RoleChild, 0xFACE, 15)
	client := coproc.NewFakeClient()
	s := newSynchronizer(stack, client, testLogger())

	// Prime lastRole via an initial non-triggering observation.
	s.onStateChange(thread.FlagRoleChanged)
	require.Empty(t, client.StartCalls)

	stack.SetRole(thread.RoleRouter)
	s.onStateChange(thread.FlagRoleChanged)
	require.Len(t, client.StartCalls, 1)
	call := client.StartCalls[0]
	require.Equal(t, uint16(0xFACE), call.PanID)
	require.Equal(t, uint8(15), call.LogicalChannel)
	require.Equal(t, uint8(15), call.BeaconOrder)
	require.Equal(t, uint8(15), call.SuperframeOrder)
	require.True(t, call.PanCoordinator)

	stack.SetRole(thread.RoleChild)
	s.onStateChange(thread.FlagRoleChanged)
	require.Len(t, client.ResetCalls, 1)
	require.False(t, client.ResetCalls[0])
}
