package radio

import (
	"encoding/binary"

	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
)

// Frame-control bit layout, IEEE 802.15.4-2006 §7.2.1. Grounded on the
// bit-field-accessor idiom of a80211 frame control parsing (see DESIGN.md).
const (
	fcFrameTypeMask    = 0x0007
	fcSecurityEnabled  = 1 << 3
	fcFramePending     = 1 << 4
	fcAckRequest       = 1 << 5
	fcPanIDCompression = 1 << 6
	fcDstAddrModeShift = 10
	fcDstAddrModeMask  = 0x3 << fcDstAddrModeShift
	fcFrameVersionShift = 12
	fcFrameVersionMask  = 0x3 << fcFrameVersionShift
	fcSrcAddrModeShift = 14
	fcSrcAddrModeMask  = 0x3 << fcSrcAddrModeShift
)

const (
	frameTypeBeacon     = 0
	frameTypeData       = 1
	frameTypeAck        = 2
	frameTypeMACCommand = 3
)

// keyIDLength returns the on-wire length of the key identifier subfield for
// a given key-id-mode, per spec.md §4.1.
func keyIDLength(mode coproc.KeyIdMode) int {
	switch mode {
	case coproc.KeyIdModeImplicit:
		return 0
	case coproc.KeyIdModeIndex:
		return 1
	case coproc.KeyIdModeShortIndex:
		return 5
	case coproc.KeyIdModeLongIndex:
		return 9
	default:
		return 0
	}
}

// addrLength returns the byte length of an address field for the given mode.
func addrLength(mode coproc.AddressMode) int {
	switch mode {
	case coproc.AddrModeShort:
		return 2
	case coproc.AddrModeExtended:
		return 8
	default:
		return 0
	}
}

// Codec translates between the stack's PHY PDU representation and the
// co-processor's MCPS-DATA parameter sets (spec.md component A).
type Codec struct{}

// Encode converts a stack-originated Radio Packet into an MCPS-DATA.request
// parameter set. It rejects with ErrAbort for anything that isn't a data or
// MAC-command frame, or that isn't well-formed enough to parse.
func (Codec) Encode(pkt *Packet) (coproc.DataRequestParams, error) {
	var req coproc.DataRequestParams
	buf := pkt.Bytes()
	if len(buf) < 3 {
		return req, ErrAbort
	}
	fc := binary.LittleEndian.Uint16(buf[0:2])
	frameType := fc & fcFrameTypeMask
	if frameType != frameTypeData && frameType != frameTypeMACCommand {
		return req, ErrAbort
	}

	srcMode := coproc.AddressMode((fc & fcSrcAddrModeMask) >> fcSrcAddrModeShift)
	dstMode := coproc.AddressMode((fc & fcDstAddrModeMask) >> fcDstAddrModeShift)
	if srcMode == coproc.AddrModeReserved || dstMode == coproc.AddrModeReserved {
		return req, ErrAbort
	}
	ackRequest := fc&fcAckRequest != 0
	panCompressed := fc&fcPanIDCompression != 0
	securityEnabled := fc&fcSecurityEnabled != 0

	off := 3
	var dstAddr coproc.Address
	if dstMode != coproc.AddrModeNone {
		if len(buf) < off+2 {
			return req, ErrAbort
		}
		dstAddr.Mode = dstMode
		dstAddr.PanID = binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
		n := addrLength(dstMode)
		if len(buf) < off+n {
			return req, ErrAbort
		}
		if dstMode == coproc.AddrModeShort {
			dstAddr.Short = binary.LittleEndian.Uint16(buf[off : off+2])
		} else {
			dstAddr.Ext = binary.LittleEndian.Uint64(buf[off : off+8])
		}
		off += n
	}

	if srcMode != coproc.AddrModeNone && !panCompressed {
		if len(buf) < off+2 {
			return req, ErrAbort
		}
		off += 2 // source PAN, not otherwise needed by the request
	}
	if srcMode != coproc.AddrModeNone {
		n := addrLength(srcMode)
		if len(buf) < off+n {
			return req, ErrAbort
		}
		off += n
	}

	var sec coproc.SecuritySpec
	if securityEnabled {
		if len(buf) < off+1 {
			return req, ErrAbort
		}
		sec.Level = coproc.SecurityLevel(buf[off] & 0x7)
		sec.KeyIdMode = coproc.KeyIdMode((buf[off] >> 3) & 0x3)
		off += 1 + 4 // security control, then skip the 4-byte frame counter
		idLen := keyIDLength(sec.KeyIdMode)
		if len(buf) < off+idLen {
			return req, ErrAbort
		}
		switch sec.KeyIdMode {
		case coproc.KeyIdModeIndex:
			sec.KeyIndex = buf[off]
		case coproc.KeyIdModeShortIndex:
			copy(sec.KeySource[:4], buf[off:off+4])
			sec.KeyIndex = buf[off+4]
		case coproc.KeyIdModeLongIndex:
			copy(sec.KeySource[:8], buf[off:off+8])
			sec.KeyIndex = buf[off+8]
		}
		off += idLen
	}

	footer := sec.MICLength() + 2 // +FCS
	if len(buf) < off+footer {
		return req, ErrAbort
	}
	payload := buf[off : len(buf)-footer]

	req.SrcAddrMode = srcMode
	req.DstAddr = dstAddr
	req.MsduLength = uint8(len(payload))
	req.Msdu = append([]byte(nil), payload...)
	req.Security = sec
	if ackRequest {
		req.TxOptions |= coproc.TxOptAckRequested
	}
	if pkt.Indirect {
		req.TxOptions |= coproc.TxOptIndirect
	}
	return req, nil
}

// Decode converts an MCPS-DATA.indication into a stack-facing Radio Packet,
// synthesizing the frame control word and MHR that the co-processor itself
// never sends on the wire between host and radio (it only sends the parsed
// fields). Footer space is reserved but left zeroed, per spec.md §4.1.
func (Codec) Decode(ind coproc.DataIndicationParams, channel uint8) (*Packet, error) {
	if ind.DstAddrMode == coproc.AddrModeReserved || ind.SrcAddrMode == coproc.AddrModeReserved {
		return nil, ErrAbort
	}

	panCompressed := ind.SrcAddrMode != coproc.AddrModeNone &&
		ind.DstAddrMode != coproc.AddrModeNone &&
		ind.SrcPanID == ind.DstPanID

	var fc uint16
	fc |= frameTypeData
	if ind.Security.Level != 0 {
		fc |= fcSecurityEnabled
	}
	if panCompressed {
		fc |= fcPanIDCompression
	}
	fc |= uint16(ind.DstAddrMode) << fcDstAddrModeShift
	fc |= uint16(ind.SrcAddrMode) << fcSrcAddrModeShift

	buf := make([]byte, 3, MaxPHYLength)
	binary.LittleEndian.PutUint16(buf[0:2], fc)
	buf[2] = ind.DSN

	if ind.DstAddrMode != coproc.AddrModeNone {
		pan := make([]byte, 2)
		binary.LittleEndian.PutUint16(pan, ind.DstPanID)
		buf = append(buf, pan...)
		if ind.DstAddrMode == coproc.AddrModeShort {
			a := make([]byte, 2)
			binary.LittleEndian.PutUint16(a, ind.DstAddr.Short)
			buf = append(buf, a...)
		} else {
			a := make([]byte, 8)
			binary.LittleEndian.PutUint64(a, ind.DstAddr.Ext)
			buf = append(buf, a...)
		}
	}

	if ind.SrcAddrMode != coproc.AddrModeNone {
		if !panCompressed {
			pan := make([]byte, 2)
			binary.LittleEndian.PutUint16(pan, ind.SrcPanID)
			buf = append(buf, pan...)
		}
		if ind.SrcAddrMode == coproc.AddrModeShort {
			a := make([]byte, 2)
			binary.LittleEndian.PutUint16(a, ind.SrcAddr.Short)
			buf = append(buf, a...)
		} else {
			a := make([]byte, 8)
			binary.LittleEndian.PutUint64(a, ind.SrcAddr.Ext)
			buf = append(buf, a...)
		}
	}

	if ind.Security.Level != 0 {
		secControl := byte(ind.Security.Level&0x7) | byte(ind.Security.KeyIdMode&0x3)<<3
		buf = append(buf, secControl, 0, 0, 0, 0) // security control + 4-byte frame counter (unused on decode path)
		switch ind.Security.KeyIdMode {
		case coproc.KeyIdModeIndex:
			buf = append(buf, ind.Security.KeyIndex)
		case coproc.KeyIdModeShortIndex:
			buf = append(buf, ind.Security.KeySource[:4]...)
			buf = append(buf, ind.Security.KeyIndex)
		case coproc.KeyIdModeLongIndex:
			buf = append(buf, ind.Security.KeySource[:8]...)
			buf = append(buf, ind.Security.KeyIndex)
		}
	}

	buf = append(buf, ind.Msdu...)

	footer := ind.Security.MICLength() + 2
	total := len(buf) + footer
	if total > MaxPHYLength {
		return nil, ErrAbort
	}
	buf = append(buf, make([]byte, footer)...)

	pkt := &Packet{Channel: channel, LQI: ind.MpduLinkQuality}
	if err := pkt.SetBytes(buf); err != nil {
		return nil, err
	}
	pkt.PowerDBm = int8((int(ind.MpduLinkQuality) - 256) / 2)
	return pkt, nil
}
