package radio

import (
	"github.com/charmbracelet/log"

	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
	"github.com/Cascoda/ca821x-posix-thread/thread"
)

const maxDeviceTableEntries = 5

// defaultKeySource is the fixed 8-byte key source used to build the lookup
// descriptor for the composite key entry, per spec.md §6.
var defaultKeySource = [8]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}

// synchronizer reacts to stack state-change flags by rebuilding the
// co-processor's device table and three-generation key table (component F,
// spec.md §4.6). It also drives the role-to-router MLME-START/RESET dance
// described in scenario 6.
type synchronizer struct {
	stack  thread.Stack
	client coproc.Client
	logger *log.Logger

	lastRole thread.Role
	haveRole bool
}

func newSynchronizer(stack thread.Stack, client coproc.Client, logger *log.Logger) *synchronizer {
	return &synchronizer{stack: stack, client: client, logger: logger}
}

// onStateChange is the hook invoked with the stack's StateChangeFlags. It
// must be called with the barrier held (it issues MLME-SET calls on the
// caller's goroutine).
func (s *synchronizer) onStateChange(flags thread.StateChangeFlags) {
	const trigger = thread.FlagKeySequenceAdvanced | thread.FlagChildAdded |
		thread.FlagChildRemoved | thread.FlagRoleChanged | thread.FlagLinkAccepted
	if flags&trigger == 0 {
		return
	}

	if flags&thread.FlagRoleChanged != 0 {
		s.handleRoleTransition()
	}

	s.rebuild()
}

// handleRoleTransition implements scenario 6: becoming a router starts a PAN
// as coordinator; reverting to child resets the MAC back to defaults.
func (s *synchronizer) handleRoleTransition() {
	role := s.stack.Role()
	defer func() { s.lastRole = role; s.haveRole = true }()

	if !s.haveRole {
		return
	}
	becameRouter := s.lastRole == thread.RoleChild && (role == thread.RoleRouter || role == thread.RoleLeader)
	revertedToChild := s.lastRole != thread.RoleChild && role == thread.RoleChild

	switch {
	case becameRouter:
		status := s.client.MlmeStart(s.stack.PanID(), s.stack.Channel(), 15, 15, true)
		if status != coproc.StatusSuccess {
			s.logger.Warn("synchronizer: MLME-START on role change failed", "status", status)
		}
	case revertedToChild:
		status := s.client.MlmeReset(false)
		if status != coproc.StatusSuccess {
			s.logger.Warn("synchronizer: MLME-RESET on role change failed", "status", status)
		}
	}
}

// rebuild performs the device-table and key-table rebuild of spec.md §4.6
// steps 1-5. On any co-processor failure it logs and stops partway,
// trusting the next trigger to retry the whole rebuild.
func (s *synchronizer) rebuild() {
	descriptors := s.buildDeviceDescriptors()

	for i, d := range descriptors {
		if status := s.client.MlmeSet(coproc.AttrDeviceTable, uint8(i), d); status != coproc.StatusSuccess {
			s.logger.Warn("synchronizer: device table write failed", "index", i, "status", status)
			return
		}
	}
	if status := s.client.MlmeSet(coproc.AttrDeviceTableEntries, 0, uint8(len(descriptors))); status != coproc.StatusSuccess {
		s.logger.Warn("synchronizer: device table entry count write failed", "status", status)
		return
	}

	if status := s.writeKeyTable(descriptors); status != coproc.StatusSuccess {
		s.logger.Warn("synchronizer: key table write failed", "status", status)
		return
	}
}

// buildDeviceDescriptors implements steps 1-2: non-child roles enumerate up
// to 5 children then fill remaining slots with routers; child role emits a
// single parent descriptor.
func (s *synchronizer) buildDeviceDescriptors() []coproc.DeviceDescriptor {
	if s.stack.Role() == thread.RoleChild {
		parent, ok := s.stack.Parent()
		if !ok || parent.ExtAddr == 0 {
			return nil
		}
		return []coproc.DeviceDescriptor{neighborToDescriptor(s.stack.PanID(), parent)}
	}

	var out []coproc.DeviceDescriptor
	for _, c := range s.stack.Children() {
		if len(out) >= maxDeviceTableEntries {
			break
		}
		if c.ExtAddr == 0 {
			continue
		}
		out = append(out, neighborToDescriptor(s.stack.PanID(), c))
	}
	remaining := maxDeviceTableEntries - len(out)
	for _, r := range s.stack.Routers() {
		if remaining <= 0 {
			break
		}
		if r.ExtAddr == 0 {
			continue
		}
		out = append(out, neighborToDescriptor(s.stack.PanID(), r))
		remaining--
	}
	return out
}

// neighborToDescriptor builds a fresh device-table row; extended addresses
// are reversed from the stack's network byte order to the co-processor's
// little-endian convention.
func neighborToDescriptor(panID uint16, n thread.Neighbor) coproc.DeviceDescriptor {
	return coproc.DeviceDescriptor{
		PanID:        panID,
		ShortAddr:    n.ShortAddr,
		ExtAddr:      reverseBytes(n.ExtAddr),
		FrameCounter: 0,
		Exempt:       false,
	}
}

func reverseBytes(v uint64) uint64 {
	var out uint64
	for i := 0; i < 8; i++ {
		out = (out << 8) | (v & 0xFF)
		v >>= 8
	}
	return out
}

// writeKeyTable implements step 4-5: one composite key descriptor covering
// up to three key generations (previous, current, next), skipping any with
// sequence 0.
func (s *synchronizer) writeKeyTable(descriptors []coproc.DeviceDescriptor) coproc.Status {
	current := s.stack.KeySequence()
	sequences := []uint32{}
	if current > 0 {
		sequences = append(sequences, current-1)
	}
	sequences = append(sequences, current)
	sequences = append(sequences, current+1)

	devices := make([]coproc.KeyDeviceDescriptor, len(descriptors))
	for i := range descriptors {
		devices[i] = coproc.KeyDeviceDescriptor{DeviceDescriptorHandle: uint8(i)}
	}

	lookupData := buildLookupData(current)

	usage := []coproc.KeyUsageDescriptor{
		{FrameType: 1}, // data frame
		{FrameType: 3, CommandId: 4},  // data-request MAC command
	}

	entryCount := 0
	for _, seq := range sequences {
		if seq == 0 {
			continue
		}
		key, ok := s.stack.DeriveKey(seq)
		if !ok {
			continue
		}
		desc := coproc.KeyDescriptor{
			KeyIdLookupList: []coproc.KeyIdLookupDescriptor{{LookupData: lookupData, LookupDataSize: 1}},
			KeyUsageList:    usage,
			KeyDeviceList:   devices,
			Key:             key,
		}
		if status := s.client.MlmeSet(coproc.AttrKeyTable, uint8(entryCount), desc); status != coproc.StatusSuccess {
			return status
		}
		entryCount++
	}
	return s.client.MlmeSet(coproc.AttrKeyTableEntries, 0, uint8(entryCount))
}

// buildLookupData builds the 9-byte lookup data for the composite key
// descriptor: the default key source right-concatenated with
// (sequence & 0x7F) + 1 in the final byte, per spec.md §4.6 step 4.
func buildLookupData(sequence uint32) [9]byte {
	var out [9]byte
	copy(out[:8], defaultKeySource[:])
	out[8] = byte((sequence & 0x7f) + 1)
	return out
}
