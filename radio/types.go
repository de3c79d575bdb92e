// Package radio is the CORE of this module: the frame-translation and
// cross-thread coordination engine bridging the Thread/IPv6 stack to an
// external IEEE 802.15.4 hard-MAC co-processor, per spec.md.
package radio

import "errors"

// MaxPHYLength is the largest PHY PDU this radio ever hands up or accepts,
// per spec.md §3 ("length (1..127)").
const MaxPHYLength = 127

// Packet is the PHY-level PDU described in spec.md §3. Buf holds the MAC
// frame exactly as a sniffer would see it — MHR through the space reserved
// for MIC+FCS — and Len is the number of significant bytes in Buf.
type Packet struct {
	Len       uint8
	Buf       [MaxPHYLength]byte
	Channel   uint8
	LQI       uint8
	PowerDBm  int8
	Indirect  bool
	Context   any
}

// Bytes returns the significant prefix of Buf.
func (p *Packet) Bytes() []byte { return p.Buf[:p.Len] }

// SetBytes copies b into Buf and sets Len, failing if b is too long.
func (p *Packet) SetBytes(b []byte) error {
	if len(b) > MaxPHYLength {
		return ErrAbort
	}
	p.Len = uint8(len(b))
	copy(p.Buf[:p.Len], b)
	return nil
}

// Clone returns a deep copy, used when the in-transit table must keep a
// snapshot independent of the caller's buffer (spec.md §3, "In-Transit
// Record: ... a snapshot of the submitting Radio Packet").
func (p *Packet) Clone() *Packet {
	cp := *p
	return &cp
}

// Status is the taxonomy surfaced to the stack, per spec.md §7.
type Status uint8

const (
	StatusOK Status = iota
	StatusBusy
	StatusAbort
	StatusChannelAccessFailure
	StatusNoAck
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusAbort:
		return "abort"
	case StatusChannelAccessFailure:
		return "channel-access-failure"
	case StatusNoAck:
		return "no-ack"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sentinel errors matching the Status taxonomy, for callers that prefer
// errors.Is over a status code.
var (
	ErrBusy                 = errors.New("radio: busy")
	ErrAbort                = errors.New("radio: abort")
	ErrChannelAccessFailure = errors.New("radio: channel access failure")
	ErrNoAck                = errors.New("radio: no ack")
	ErrFailed               = errors.New("radio: failed")
)

// StatusToError maps a Status to its sentinel error, or nil for StatusOK.
func StatusToError(s Status) error {
	switch s {
	case StatusOK:
		return nil
	case StatusBusy:
		return ErrBusy
	case StatusAbort:
		return ErrAbort
	case StatusChannelAccessFailure:
		return ErrChannelAccessFailure
	case StatusNoAck:
		return ErrNoAck
	default:
		return ErrFailed
	}
}

// Caps advertises platform capabilities to the stack; spec.md §6 requires
// advertising "ack-timeout".
type Caps uint32

const CapAckTimeout Caps = 1 << 0

// BeaconResult is delivered to the stack's active-scan callback, once per
// beacon observed, per spec.md §4.7.
type BeaconResult struct {
	Channel     uint8
	PanID       uint16
	CoordExt    uint64
	LQI         uint8
	NetworkName string
	ExtPanID    [8]byte
}

// EnergyResult is delivered once per channel measured during an energy scan.
type EnergyResult struct {
	Channel uint8
	RSSI    int8
}

// Callbacks bundles the stack-supplied hooks this module invokes, always
// under the cross-thread barrier when invoked from the worker (spec.md §6).
type Callbacks struct {
	// ReceiveDone delivers one decoded inbound frame, or a non-nil err if
	// the driver reports a receive-path failure.
	ReceiveDone func(pkt *Packet, err error)
	// TransmitDone delivers the outcome of a previously submitted Transmit.
	TransmitDone func(context any, ackReceived bool, err error)
	// ActiveScanResult is called once per beacon, then once more with a nil
	// result to signal scan completion (spec.md §4.7).
	ActiveScanResult func(result *BeaconResult)
	// EnergyScanResult is called once per channel measured, then once more
	// with a nil result to signal scan completion.
	EnergyScanResult func(result *EnergyResult)
}
