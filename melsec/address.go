package melsec

import (
	"fmt"
	"strconv"
	"strings"
)

// deviceInfo describes one MELSEC device type for the binary 3E dialect.
type deviceInfo struct {
	code byte // Device code byte in binary frames
	hex  bool // Device numbers written in hex (X, Y, B, W, ...)
	bit  bool // Bit device (readable in bit units)
}

// Device codes per the MELSEC Communication Protocol reference (SH-080008),
// binary mode. Longest mnemonics must be matched first when parsing.
var deviceCodes = map[string]deviceInfo{
	"SM": {code: 0x91, bit: true},
	"SD": {code: 0xA9},
	"X":  {code: 0x9C, hex: true, bit: true},
	"Y":  {code: 0x9D, hex: true, bit: true},
	"M":  {code: 0x90, bit: true},
	"L":  {code: 0x92, bit: true},
	"F":  {code: 0x93, bit: true},
	"V":  {code: 0x94, bit: true},
	"B":  {code: 0xA0, hex: true, bit: true},
	"D":  {code: 0xA8},
	"W":  {code: 0xB4, hex: true},
	"SB": {code: 0xA1, hex: true, bit: true},
	"SW": {code: 0xB5, hex: true},
	"TS": {code: 0xC1, bit: true},
	"TC": {code: 0xC0, bit: true},
	"TN": {code: 0xC2},
	"CS": {code: 0xC4, bit: true},
	"CC": {code: 0xC3, bit: true},
	"CN": {code: 0xC5},
	"R":  {code: 0xAF},
	"ZR": {code: 0xB0, hex: true},
	"Z":  {code: 0xCC},
}

// Head device numbers are encoded in 3 bytes, so the addressable range is
// bounded regardless of device type.
const maxDeviceNumber = 0xFFFFFF

// DeviceAddress is a parsed device name such as "D100" or "SD210".
type DeviceAddress struct {
	Device string // Mnemonic, e.g. "D", "SD", "W"
	Number uint32 // Head device number
	code   byte
	bit    bool
}

// ParseDevice parses a device name like "D100", "SD210" or "W1A0" into a
// DeviceAddress. Hex-numbered devices (X, Y, B, W, SB, SW, ZR) take their
// number in hexadecimal, everything else in decimal.
func ParseDevice(name string) (DeviceAddress, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return DeviceAddress{}, fmt.Errorf("%w: empty device name", ErrInvalidAddress)
	}

	// Two-letter mnemonics shadow one-letter ones (SD vs S, ZR vs Z).
	var mnemonic string
	var info deviceInfo
	if len(s) >= 2 {
		if di, ok := deviceCodes[s[:2]]; ok {
			mnemonic, info = s[:2], di
		}
	}
	if mnemonic == "" {
		if di, ok := deviceCodes[s[:1]]; ok {
			mnemonic, info = s[:1], di
		}
	}
	if mnemonic == "" {
		return DeviceAddress{}, fmt.Errorf("%w: unknown device type in %q", ErrInvalidAddress, name)
	}

	numStr := s[len(mnemonic):]
	if numStr == "" {
		return DeviceAddress{}, fmt.Errorf("%w: missing device number in %q", ErrInvalidAddress, name)
	}

	base := 10
	if info.hex {
		base = 16
	}
	n, err := strconv.ParseUint(numStr, base, 32)
	if err != nil {
		return DeviceAddress{}, fmt.Errorf("%w: bad device number in %q", ErrInvalidAddress, name)
	}
	if n > maxDeviceNumber {
		return DeviceAddress{}, fmt.Errorf("%w: device number out of range in %q", ErrInvalidAddress, name)
	}

	return DeviceAddress{
		Device: mnemonic,
		Number: uint32(n),
		code:   info.code,
		bit:    info.bit,
	}, nil
}

// IsBitDevice reports whether the address refers to a bit device.
func (a DeviceAddress) IsBitDevice() bool {
	return a.bit
}

// Offset returns the address advanced by n points within the same device.
func (a DeviceAddress) Offset(n uint32) DeviceAddress {
	out := a
	out.Number += n
	return out
}

// String renders the address back to its device-name form.
func (a DeviceAddress) String() string {
	if di, ok := deviceCodes[a.Device]; ok && di.hex {
		return fmt.Sprintf("%s%X", a.Device, a.Number)
	}
	return fmt.Sprintf("%s%d", a.Device, a.Number)
}
