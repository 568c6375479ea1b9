package melsec

import (
	"encoding/binary"
	"fmt"
)

// MC protocol 3E frame constants (binary mode).
const (
	subheaderRequest  uint16 = 0x0050 // 0x50 0x00 on the wire
	subheaderResponse uint16 = 0x00D0 // 0xD0 0x00 on the wire

	requestHeaderSize  = 15 // subheader..subcommand
	responseHeaderSize = 9  // subheader..data length
	responseEndOK      = 0x0000
)

// 3E command codes.
const (
	cmdBatchRead uint16 = 0x0401 // Batch read (single device range)
	cmdBlockRead uint16 = 0x0406 // Multiple block batch read

	subWordUnits uint16 = 0x0000
	subBitUnits  uint16 = 0x0001
)

// Hard limits from the MC protocol reference for a single request.
const (
	maxBatchReadPoints = 960 // Word-unit batch read
	maxBitReadPoints   = 7168
	maxReadBlocks      = 120
)

// route identifies the frame destination within the MELSEC network.
// The defaults address the local station CPU.
type route struct {
	network  byte
	pc       byte
	ioNumber uint16
	station  byte
}

var defaultRoute = route{
	network:  0x00,
	pc:       0xFF,
	ioNumber: 0x03FF,
	station:  0x00,
}

// Block describes one device range in a batched read.
type Block struct {
	Addr   DeviceAddress
	Points uint16
}

// buildRequest assembles a complete 3E request frame. The monitoring timer
// is in 250ms units; 0 means wait forever on the controller side.
func buildRequest(r route, timer uint16, cmd, sub uint16, payload []byte) []byte {
	frame := make([]byte, requestHeaderSize+len(payload))

	binary.LittleEndian.PutUint16(frame[0:2], subheaderRequest)
	frame[2] = r.network
	frame[3] = r.pc
	binary.LittleEndian.PutUint16(frame[4:6], r.ioNumber)
	frame[6] = r.station

	// Request data length counts everything after itself: monitoring
	// timer, command, subcommand and payload.
	binary.LittleEndian.PutUint16(frame[7:9], uint16(6+len(payload)))
	binary.LittleEndian.PutUint16(frame[9:11], timer)
	binary.LittleEndian.PutUint16(frame[11:13], cmd)
	binary.LittleEndian.PutUint16(frame[13:15], sub)
	copy(frame[15:], payload)

	return frame
}

// parseResponseHeader validates a 3E response header and returns the number
// of bytes that follow it (end code + data).
func parseResponseHeader(hdr []byte) (int, error) {
	if len(hdr) < responseHeaderSize {
		return 0, fmt.Errorf("%w: response header too short: %d bytes", ErrProtocol, len(hdr))
	}
	if sub := binary.LittleEndian.Uint16(hdr[0:2]); sub != subheaderResponse {
		return 0, fmt.Errorf("%w: bad response subheader 0x%04X", ErrProtocol, sub)
	}
	dataLen := int(binary.LittleEndian.Uint16(hdr[7:9]))
	if dataLen < 2 {
		return 0, fmt.Errorf("%w: response data length %d too short for end code", ErrProtocol, dataLen)
	}
	return dataLen, nil
}

// appendDeviceSpec appends a binary device specification: head device
// number in 3 bytes little-endian followed by the device code.
func appendDeviceSpec(b []byte, addr DeviceAddress) []byte {
	return append(b,
		byte(addr.Number),
		byte(addr.Number>>8),
		byte(addr.Number>>16),
		addr.code,
	)
}

// buildBatchReadPayload builds the payload for command 0401.
func buildBatchReadPayload(addr DeviceAddress, points uint16) []byte {
	payload := appendDeviceSpec(make([]byte, 0, 6), addr)
	return binary.LittleEndian.AppendUint16(payload, points)
}

// buildBlockReadPayload builds the payload for command 0406 covering all
// requested word-unit blocks in order.
func buildBlockReadPayload(blocks []Block) ([]byte, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks requested", ErrInvalidAddress)
	}
	if len(blocks) > maxReadBlocks {
		return nil, fmt.Errorf("%w: %d blocks exceeds limit of %d", ErrInvalidAddress, len(blocks), maxReadBlocks)
	}

	total := 0
	payload := make([]byte, 2, 2+6*len(blocks))
	payload[0] = byte(len(blocks)) // Word-unit block count
	payload[1] = 0                 // Bit-unit block count (unused)

	for _, blk := range blocks {
		if blk.Points == 0 {
			return nil, fmt.Errorf("%w: zero-point block at %s", ErrInvalidAddress, blk.Addr)
		}
		total += int(blk.Points)
		if total > maxBatchReadPoints {
			return nil, fmt.Errorf("%w: total read points %d exceeds limit of %d", ErrInvalidAddress, total, maxBatchReadPoints)
		}
		payload = appendDeviceSpec(payload, blk.Addr)
		payload = binary.LittleEndian.AppendUint16(payload, blk.Points)
	}

	return payload, nil
}

// wordsFromBytes decodes little-endian word data from a response.
func wordsFromBytes(data []byte) []uint16 {
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return words
}

// bitsFromBytes decodes bit-unit read data. Bits are packed two per byte,
// first bit in the high nibble.
func bitsFromBytes(data []byte, count int) []bool {
	bits := make([]bool, count)
	for i := 0; i < count; i++ {
		b := data[i/2]
		if i%2 == 0 {
			bits[i] = (b>>4)&0x1 != 0
		} else {
			bits[i] = b&0x1 != 0
		}
	}
	return bits
}

// endCodeError returns a ErrProtocol-wrapped error describing a non-zero 3E
// end code. Codes are from the MC protocol reference (SH-080008).
func endCodeError(code uint16) error {
	if code == responseEndOK {
		return nil
	}

	var msg string
	switch code {
	case 0xC050:
		msg = "communication data code mismatch (ASCII/binary setting)"
	case 0xC051, 0xC052, 0xC053, 0xC054:
		msg = "number of points exceeds the allowed range"
	case 0xC056:
		msg = "request exceeds the maximum device address"
	case 0xC058:
		msg = "request data length does not match the data received"
	case 0xC059:
		msg = "command or subcommand not supported"
	case 0xC05B:
		msg = "CPU cannot access the specified device"
	case 0xC05C:
		msg = "request content error (bad unit for device)"
	case 0xC05F:
		msg = "request cannot be executed for the target module"
	case 0xC060:
		msg = "request content error for bit device data"
	case 0xC061:
		msg = "request data length does not match the number of points"
	case 0xC0D8:
		msg = "number of blocks exceeds the allowed range"
	default:
		msg = "controller rejected the request"
	}

	return fmt.Errorf("%w: end code 0x%04X: %s", ErrProtocol, code, msg)
}
