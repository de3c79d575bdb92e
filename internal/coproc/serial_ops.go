package coproc

import (
	"encoding/binary"
	"errors"
)

// Opcodes for synchronous requests and indication primitive ids on the wire.
// These are this module's own invention for the demo serial transport; a real
// deployment would use the co-processor vendor's actual command set (the
// spec.md collaborator this package stands in for).
const (
	opMlmeSet   uint8 = 0x01
	opMlmeGet   uint8 = 0x02
	opMlmeReset uint8 = 0x03
	opMlmeStart uint8 = 0x04
	opMlmeScan  uint8 = 0x05
	opMlmePoll  uint8 = 0x06
	opHwmeSet   uint8 = 0x07
	opHwmeGet   uint8 = 0x08
	opDataReq   uint8 = 0x09

	primDataIndication uint8 = 0x81
	primDataConfirm    uint8 = 0x82
	primBeaconNotify   uint8 = 0x83
	primScanConfirm    uint8 = 0x84
)

func (c *SerialClient) MlmeSet(attr Attribute, index uint8, value any) Status {
	payload := append([]byte{uint8(attr), index}, encodeAttrValue(attr, value)...)
	r, err := c.command(opMlmeSet, payload)
	if err != nil {
		c.logger.Warn("coproc: MlmeSet failed", "attr", attr, "err", err)
		return StatusDenied
	}
	return r.status
}

func (c *SerialClient) MlmeGet(attr Attribute, index uint8) (any, Status) {
	r, err := c.command(opMlmeGet, []byte{uint8(attr), index})
	if err != nil {
		c.logger.Warn("coproc: MlmeGet failed", "attr", attr, "err", err)
		return nil, StatusDenied
	}
	return decodeAttrValue(attr, r.payload), r.status
}

func (c *SerialClient) MlmeReset(setDefaultPIB bool) Status {
	var b uint8
	if setDefaultPIB {
		b = 1
	}
	r, err := c.command(opMlmeReset, []byte{b})
	if err != nil {
		return StatusDenied
	}
	return r.status
}

func (c *SerialClient) MlmeStart(panID uint16, logicalChannel uint8, beaconOrder, superframeOrder uint8, panCoordinator bool) Status {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], panID)
	payload[2] = logicalChannel
	payload[3] = beaconOrder
	payload[4] = superframeOrder
	if panCoordinator {
		payload[5] = 1
	}
	r, err := c.command(opMlmeStart, payload)
	if err != nil {
		return StatusDenied
	}
	return r.status
}

func (c *SerialClient) MlmeScan(scanType ScanResultType, channelMask uint32, scanDuration uint8) Status {
	payload := make([]byte, 6)
	payload[0] = uint8(scanType)
	binary.LittleEndian.PutUint32(payload[1:5], channelMask)
	payload[5] = scanDuration
	r, err := c.command(opMlmeScan, payload)
	if err != nil {
		return StatusDenied
	}
	return r.status
}

func (c *SerialClient) MlmePoll(coordAddr Address) Status {
	payload := encodeAddress(coordAddr)
	r, err := c.command(opMlmePoll, payload)
	if err != nil {
		return StatusDenied
	}
	return r.status
}

func (c *SerialClient) HwmeSet(attr Attribute, value any) Status {
	payload := append([]byte{uint8(attr)}, encodeAttrValue(attr, value)...)
	r, err := c.command(opHwmeSet, payload)
	if err != nil {
		return StatusDenied
	}
	return r.status
}

func (c *SerialClient) HwmeGet(attr Attribute) (any, Status) {
	r, err := c.command(opHwmeGet, []byte{uint8(attr)})
	if err != nil {
		return nil, StatusDenied
	}
	return decodeAttrValue(attr, r.payload), r.status
}

func (c *SerialClient) McpsDataRequest(req DataRequestParams) Status {
	payload := make([]byte, 0, 16+len(req.Msdu))
	payload = append(payload, uint8(req.SrcAddrMode))
	payload = append(payload, encodeAddress(req.DstAddr)...)
	payload = append(payload, req.MsduHandle, req.TxOptions)
	payload = append(payload, uint8(req.Security.Level), uint8(req.Security.KeyIdMode), req.Security.KeyIndex)
	payload = append(payload, req.Security.KeySource[:]...)
	payload = append(payload, uint8(len(req.Msdu)))
	payload = append(payload, req.Msdu...)
	r, err := c.command(opDataReq, payload)
	if err != nil {
		return StatusDenied
	}
	return r.status
}

func encodeAddress(a Address) []byte {
	buf := make([]byte, 0, 11)
	buf = append(buf, uint8(a.Mode))
	pan := make([]byte, 2)
	binary.LittleEndian.PutUint16(pan, a.PanID)
	buf = append(buf, pan...)
	switch a.Mode {
	case AddrModeShort:
		v := make([]byte, 2)
		binary.LittleEndian.PutUint16(v, a.Short)
		buf = append(buf, v...)
	case AddrModeExtended:
		v := make([]byte, 8)
		binary.LittleEndian.PutUint64(v, a.Ext)
		buf = append(buf, v...)
	}
	return buf
}

func decodeAddress(buf []byte) (Address, int, error) {
	if len(buf) < 3 {
		return Address{}, 0, errors.New("short address buffer")
	}
	a := Address{Mode: AddressMode(buf[0]), PanID: binary.LittleEndian.Uint16(buf[1:3])}
	switch a.Mode {
	case AddrModeShort:
		if len(buf) < 5 {
			return Address{}, 0, errors.New("short address buffer")
		}
		a.Short = binary.LittleEndian.Uint16(buf[3:5])
		return a, 5, nil
	case AddrModeExtended:
		if len(buf) < 11 {
			return Address{}, 0, errors.New("short address buffer")
		}
		a.Ext = binary.LittleEndian.Uint64(buf[3:11])
		return a, 11, nil
	default:
		return a, 3, nil
	}
}

func decodeDataIndication(buf []byte) (DataIndicationParams, error) {
	var p DataIndicationParams
	src, n, err := decodeAddress(buf)
	if err != nil {
		return p, err
	}
	p.SrcAddrMode = src.Mode
	p.SrcPanID = src.PanID
	p.SrcAddr = src
	buf = buf[n:]

	dst, n, err := decodeAddress(buf)
	if err != nil {
		return p, err
	}
	p.DstAddrMode = dst.Mode
	p.DstPanID = dst.PanID
	p.DstAddr = dst
	buf = buf[n:]

	if len(buf) < 2+3+8+1 {
		return p, errors.New("short data indication")
	}
	p.DSN = buf[0]
	p.MpduLinkQuality = buf[1]
	p.Security.Level = SecurityLevel(buf[2])
	p.Security.KeyIdMode = KeyIdMode(buf[3])
	p.Security.KeyIndex = buf[4]
	copy(p.Security.KeySource[:], buf[5:13])
	msduLen := buf[13]
	buf = buf[14:]
	if len(buf) < int(msduLen) {
		return p, errors.New("short msdu")
	}
	p.MsduLength = msduLen
	p.Msdu = append([]byte(nil), buf[:msduLen]...)
	return p, nil
}

func decodeBeaconNotify(buf []byte) (BeaconNotifyIndicationParams, error) {
	var p BeaconNotifyIndicationParams
	if len(buf) < 1 {
		return p, errors.New("short beacon notify")
	}
	p.BSN = buf[0]
	addr, n, err := decodeAddress(buf[1:])
	if err != nil {
		return p, err
	}
	p.PanDescriptor.CoordAddr = addr
	rest := buf[1+n:]
	if len(rest) < 2 {
		return p, errors.New("short beacon notify")
	}
	p.PanDescriptor.Channel = rest[0]
	p.PanDescriptor.LinkQuality = rest[1]
	p.SDU = append([]byte(nil), rest[2:]...)
	return p, nil
}

func decodeScanConfirm(buf []byte) (ScanConfirmParams, error) {
	var p ScanConfirmParams
	if len(buf) < 7 {
		return p, errors.New("short scan confirm")
	}
	p.Status = Status(buf[0])
	p.ScanType = ScanResultType(buf[1])
	p.UnscannedChannels = binary.LittleEndian.Uint32(buf[2:6])
	p.ResultListSize = buf[6]
	if p.ScanType == ScanTypeEnergyDetect {
		rest := buf[7:]
		if len(rest) < int(p.ResultListSize) {
			return p, errors.New("short energy detect list")
		}
		p.EnergyDetectList = make([]int8, p.ResultListSize)
		for i := range p.EnergyDetectList {
			p.EnergyDetectList[i] = int8(rest[i])
		}
	}
	return p, nil
}

func encodeAttrValue(attr Attribute, value any) []byte {
	switch v := value.(type) {
	case uint8:
		return []byte{v}
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	case uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b
	case bool:
		if v {
			return []byte{1}
		}
		return []byte{0}
	case []byte:
		return v
	case DeviceDescriptor:
		return encodeDeviceDescriptor(v)
	case KeyDescriptor:
		return encodeKeyDescriptor(v)
	default:
		return nil
	}
}

func decodeAttrValue(attr Attribute, buf []byte) any {
	switch attr {
	case AttrPanID, AttrShortAddress:
		if len(buf) < 2 {
			return uint16(0)
		}
		return binary.LittleEndian.Uint16(buf)
	case AttrExtendedAddress, AttrEUI64:
		if len(buf) < 8 {
			return uint64(0)
		}
		return binary.LittleEndian.Uint64(buf)
	case AttrRxOnWhenIdle, AttrPromiscuousMode, AttrSecurityEnabled:
		return len(buf) > 0 && buf[0] != 0
	case AttrNoiseFloor:
		if len(buf) < 1 {
			return int8(0)
		}
		return int8(buf[0])
	default:
		return buf
	}
}

func encodeDeviceDescriptor(d DeviceDescriptor) []byte {
	buf := make([]byte, 17)
	binary.LittleEndian.PutUint16(buf[0:2], d.PanID)
	binary.LittleEndian.PutUint16(buf[2:4], d.ShortAddr)
	binary.LittleEndian.PutUint64(buf[4:12], d.ExtAddr)
	binary.LittleEndian.PutUint32(buf[12:16], d.FrameCounter)
	if d.Exempt {
		buf[16] = 1
	}
	return buf
}

func encodeKeyDescriptor(k KeyDescriptor) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, k.Key[:]...)
	buf = append(buf, uint8(len(k.KeyIdLookupList)))
	for _, l := range k.KeyIdLookupList {
		buf = append(buf, l.LookupDataSize)
		buf = append(buf, l.LookupData[:]...)
	}
	buf = append(buf, uint8(len(k.KeyUsageList)))
	for _, u := range k.KeyUsageList {
		buf = append(buf, u.FrameType, u.CommandId)
	}
	buf = append(buf, uint8(len(k.KeyDeviceList)))
	for _, d := range k.KeyDeviceList {
		var flags uint8
		if d.UniqueDevice {
			flags |= 1
		}
		if d.Blacklisted {
			flags |= 2
		}
		buf = append(buf, d.DeviceDescriptorHandle, flags)
	}
	return buf
}
