// Package thread defines the upward collaborator this module consumes: the
// Thread/IPv6 stack itself. Per spec.md §1 this is "an opaque collaborator
// offering neighbor enumeration, key-derivation, role queries, and callbacks
// for PDU receipt and transmit completion" — we define only the interface
// the radio package needs and a small in-memory implementation good enough
// to drive tests and the demo binary.
package thread

// Role is the node's current position in the Thread network.
type Role uint8

const (
	RoleDisabled Role = iota
	RoleChild
	RoleRouter
	RoleLeader
)

// Neighbor describes one entry the synchronizer may need to stage into the
// co-processor's device table.
type Neighbor struct {
	ExtAddr   uint64 // network byte order, as the stack holds it
	ShortAddr uint16
}

// StateChangeFlags mirrors the set of stack events spec.md §4.6 says trigger
// a device/key table rebuild.
type StateChangeFlags uint8

const (
	FlagKeySequenceAdvanced StateChangeFlags = 1 << iota
	FlagChildAdded
	FlagChildRemoved
	FlagRoleChanged
	FlagLinkAccepted
)

// Stack is the minimal surface of the Thread/IPv6 stack the radio package
// consumes: role/neighbor/key queries. Frame receipt and transmit-completion
// notifications flow the other way, as plain callbacks supplied to
// radio.New, not through this interface — the stack does not export a
// "push a frame to me" method here, it registers to be called instead.
type Stack interface {
	Role() Role
	Children() []Neighbor
	Routers() []Neighbor
	Parent() (Neighbor, bool)
	PanID() uint16
	Channel() uint8
	KeySequence() uint32
	// DeriveKey returns the 16-byte master key material for the given key
	// sequence number, or ok=false if that generation doesn't exist
	// (sequence 0 is never valid, per spec.md §4.6 step 5).
	DeriveKey(sequence uint32) (key [16]byte, ok bool)
}

// MemStack is a minimal in-memory Stack, sufficient for tests and the demo
// binary's bootstrap, where a real Thread stack isn't available.
type MemStack struct {
	role        Role
	children    []Neighbor
	routers     []Neighbor
	parent      Neighbor
	hasParent   bool
	panID       uint16
	channel     uint8
	keySequence uint32
	keys        map[uint32][16]byte
}

// NewMemStack constructs an empty stack fixture in the given role.
func NewMemStack(role Role, panID uint16, channel uint8) *MemStack {
	return &MemStack{role: role, panID: panID, channel: channel, keys: make(map[uint32][16]byte)}
}

func (m *MemStack) Role() Role            { return m.role }
func (m *MemStack) SetRole(r Role)        { m.role = r }
func (m *MemStack) Children() []Neighbor  { return m.children }
func (m *MemStack) Routers() []Neighbor   { return m.routers }
func (m *MemStack) PanID() uint16         { return m.panID }
func (m *MemStack) Channel() uint8        { return m.channel }
func (m *MemStack) KeySequence() uint32   { return m.keySequence }

func (m *MemStack) Parent() (Neighbor, bool) { return m.parent, m.hasParent }

func (m *MemStack) SetParent(n Neighbor) {
	m.parent = n
	m.hasParent = true
}

func (m *MemStack) AddChild(n Neighbor)  { m.children = append(m.children, n) }
func (m *MemStack) AddRouter(n Neighbor) { m.routers = append(m.routers, n) }

func (m *MemStack) SetKeySequence(seq uint32) { m.keySequence = seq }

func (m *MemStack) SetKey(seq uint32, key [16]byte) { m.keys[seq] = key }

func (m *MemStack) DeriveKey(sequence uint32) ([16]byte, bool) {
	if sequence == 0 {
		return [16]byte{}, false
	}
	k, ok := m.keys[sequence]
	return k, ok
}
