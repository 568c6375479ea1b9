package melsec

import (
	"bytes"
	"errors"
	"testing"
)

func mustParse(t *testing.T, name string) DeviceAddress {
	t.Helper()
	addr, err := ParseDevice(name)
	if err != nil {
		t.Fatalf("ParseDevice(%q): %v", name, err)
	}
	return addr
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name   string
		device string
		number uint32
		code   byte
		bit    bool
	}{
		{"D100", "D", 100, 0xA8, false},
		{"d100", "D", 100, 0xA8, false},
		{"SD210", "SD", 210, 0xA9, false},
		{"M0", "M", 0, 0x90, true},
		{"X1F", "X", 0x1F, 0x9C, true},
		{"Y10", "Y", 0x10, 0x9D, true},
		{"W1A0", "W", 0x1A0, 0xB4, false},
		{"R32767", "R", 32767, 0xAF, false},
		{"ZR100", "ZR", 0x100, 0xB0, false},
		{"SM400", "SM", 400, 0x91, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := ParseDevice(tc.name)
			if err != nil {
				t.Fatalf("ParseDevice(%q): %v", tc.name, err)
			}
			if addr.Device != tc.device || addr.Number != tc.number {
				t.Errorf("got %s%d, want %s%d", addr.Device, addr.Number, tc.device, tc.number)
			}
			if addr.code != tc.code {
				t.Errorf("code = 0x%02X, want 0x%02X", addr.code, tc.code)
			}
			if addr.IsBitDevice() != tc.bit {
				t.Errorf("IsBitDevice() = %v, want %v", addr.IsBitDevice(), tc.bit)
			}
		})
	}
}

func TestParseDeviceErrors(t *testing.T) {
	for _, name := range []string{"", "100", "Q100", "D", "DXYZ", "D99999999"} {
		if _, err := ParseDevice(name); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseDevice(%q) = %v, want ErrInvalidAddress", name, err)
		}
	}
}

func TestDeviceString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"d100", "D100"},
		{"x1f", "X1F"},
		{"SD210", "SD210"},
		{"w1a0", "W1A0"},
	}
	for _, tc := range tests {
		if got := mustParse(t, tc.in).String(); got != tc.want {
			t.Errorf("String(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildRequestBatchRead(t *testing.T) {
	// Batch read of 2 words from D100, local station, 4s monitoring timer.
	payload := buildBatchReadPayload(mustParse(t, "D100"), 2)
	frame := buildRequest(defaultRoute, 0x0010, cmdBatchRead, subWordUnits, payload)

	want := []byte{
		0x50, 0x00, // Subheader
		0x00,       // Network
		0xFF,       // PC
		0xFF, 0x03, // Module I/O
		0x00,       // Station
		0x0C, 0x00, // Request data length (12)
		0x10, 0x00, // Monitoring timer
		0x01, 0x04, // Command 0401
		0x00, 0x00, // Subcommand 0000
		0x64, 0x00, 0x00, // Head device 100
		0xA8,       // Device code D
		0x02, 0x00, // Points
	}

	if !bytes.Equal(frame, want) {
		t.Errorf("frame mismatch:\n got %X\nwant %X", frame, want)
	}
}

func TestBuildBlockReadPayload(t *testing.T) {
	blocks := []Block{
		{Addr: mustParse(t, "D100"), Points: 1},
		{Addr: mustParse(t, "SD210"), Points: 3},
	}
	payload, err := buildBlockReadPayload(blocks)
	if err != nil {
		t.Fatalf("buildBlockReadPayload: %v", err)
	}

	want := []byte{
		0x02, 0x00, // 2 word blocks, 0 bit blocks
		0x64, 0x00, 0x00, 0xA8, 0x01, 0x00, // D100 x1
		0xD2, 0x00, 0x00, 0xA9, 0x03, 0x00, // SD210 x3
	}
	if !bytes.Equal(payload, want) {
		t.Errorf("payload mismatch:\n got %X\nwant %X", payload, want)
	}
}

func TestBuildBlockReadPayloadErrors(t *testing.T) {
	t.Run("no blocks", func(t *testing.T) {
		if _, err := buildBlockReadPayload(nil); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("got %v, want ErrInvalidAddress", err)
		}
	})

	t.Run("zero points", func(t *testing.T) {
		blocks := []Block{{Addr: mustParse(t, "D0"), Points: 0}}
		if _, err := buildBlockReadPayload(blocks); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("got %v, want ErrInvalidAddress", err)
		}
	})

	t.Run("too many points", func(t *testing.T) {
		blocks := []Block{
			{Addr: mustParse(t, "D0"), Points: 900},
			{Addr: mustParse(t, "D1000"), Points: 100},
		}
		if _, err := buildBlockReadPayload(blocks); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("got %v, want ErrInvalidAddress", err)
		}
	})
}

func TestParseResponseHeader(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		hdr := []byte{0xD0, 0x00, 0x00, 0xFF, 0xFF, 0x03, 0x00, 0x06, 0x00}
		n, err := parseResponseHeader(hdr)
		if err != nil {
			t.Fatalf("parseResponseHeader: %v", err)
		}
		if n != 6 {
			t.Errorf("data length = %d, want 6", n)
		}
	})

	t.Run("bad subheader", func(t *testing.T) {
		hdr := []byte{0x50, 0x00, 0x00, 0xFF, 0xFF, 0x03, 0x00, 0x06, 0x00}
		if _, err := parseResponseHeader(hdr); !errors.Is(err, ErrProtocol) {
			t.Errorf("got %v, want ErrProtocol", err)
		}
	})

	t.Run("short", func(t *testing.T) {
		if _, err := parseResponseHeader([]byte{0xD0}); !errors.Is(err, ErrProtocol) {
			t.Errorf("got %v, want ErrProtocol", err)
		}
	})
}

func TestWordsFromBytes(t *testing.T) {
	words := wordsFromBytes([]byte{0x34, 0x12, 0xFF, 0x00})
	if len(words) != 2 || words[0] != 0x1234 || words[1] != 0x00FF {
		t.Errorf("wordsFromBytes = %v, want [0x1234 0x00FF]", words)
	}
}

func TestBitsFromBytes(t *testing.T) {
	// Two bits per byte, first bit in the high nibble.
	bits := bitsFromBytes([]byte{0x10, 0x11, 0x00}, 5)
	want := []bool{true, false, true, true, false}
	for i := range want {
		if bits[i] != want[i] {
			t.Errorf("bit %d = %v, want %v", i, bits[i], want[i])
		}
	}
}

func TestEndCodeError(t *testing.T) {
	if err := endCodeError(responseEndOK); err != nil {
		t.Errorf("end code 0 should be nil, got %v", err)
	}
	for _, code := range []uint16{0xC051, 0xC056, 0xC059, 0xC061, 0xBEEF} {
		if err := endCodeError(code); !errors.Is(err, ErrProtocol) {
			t.Errorf("end code 0x%04X = %v, want ErrProtocol", code, err)
		}
	}
}
