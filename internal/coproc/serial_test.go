package coproc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXorChecksum(t *testing.T) {
	require.Equal(t, byte(0), xorChecksum(nil))
	require.Equal(t, byte(0x01^0x02^0x03), xorChecksum([]byte{0x01, 0x02, 0x03}))
}

func TestCommandFrameSerialize(t *testing.T) {
	cf := commandFrame{opcode: opMlmeGet, payload: []byte{0xAA, 0xBB}}
	buf := cf.serialize()
	require.Equal(t, byte(startCommand), buf[0])
	require.Equal(t, opMlmeGet, buf[1])
	require.Equal(t, byte(2), buf[2]) // payload length
	require.Equal(t, []byte{0xAA, 0xBB}, buf[3:5])
	require.Equal(t, xorChecksum(buf[1:5]), buf[5])
}

func TestEncodeDecodeAddressRoundTrip(t *testing.T) {
	for _, a := range []Address{
		{Mode: AddrModeNone, PanID: 0x1234},
		{Mode: AddrModeShort, PanID: 0x1234, Short: 0xBEEF},
		{Mode: AddrModeExtended, PanID: 0x1234, Ext: 0x0102030405060708},
	} {
		buf := encodeAddress(a)
		got, n, err := decodeAddress(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, a, got)
	}
}

func TestDecodeDataIndicationRoundTrip(t *testing.T) {
	src := encodeAddress(Address{Mode: AddrModeShort, PanID: 0xFACE, Short: 0x0002})
	dst := encodeAddress(Address{Mode: AddrModeShort, PanID: 0xFACE, Short: 0x0001})
	buf := append([]byte{}, src...)
	buf = append(buf, dst...)
	buf = append(buf, 7)    // DSN
	buf = append(buf, 200)  // LQI
	buf = append(buf, 0, 0, 0) // security level, key-id-mode, key-index (disabled)
	buf = append(buf, make([]byte, 8)...) // key source
	buf = append(buf, 3)    // msdu length
	buf = append(buf, 0xAA, 0xBB, 0xCC)

	p, err := decodeDataIndication(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(7), p.DSN)
	require.Equal(t, uint8(200), p.MpduLinkQuality)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, p.Msdu)
	require.Equal(t, uint16(0x0002), p.SrcAddr.Short)
	require.Equal(t, uint16(0x0001), p.DstAddr.Short)
}

func TestEncodeDeviceDescriptorLayout(t *testing.T) {
	d := DeviceDescriptor{PanID: 0x1234, ShortAddr: 0x5678, ExtAddr: 0x0102030405060708, FrameCounter: 99, Exempt: true}
	buf := encodeDeviceDescriptor(d)
	require.Len(t, buf, 17)
	require.Equal(t, byte(1), buf[16]) // exempt flag set
	require.NotZero(t, buf[12]) // frame counter bytes actually written
}
