package hilsim

import (
	"bytes"
	"testing"
)

func TestFixedFrame_Golden(t *testing.T) {
	got := FixedFrame([]uint16{3000, 3100, 2900, 3500, 2500, 4000, 2000, 3000})
	want := [FixedFrameLen]byte{
		0xFF, 0xEE,
		0x0B, 0xB8, 0x0C, 0x1C, 0x0B, 0x54, 0x0D, 0xAC,
		0x09, 0xC4, 0x0F, 0xA0, 0x07, 0xD0, 0x0B, 0xB8,
		0x19, 0xB2,
	}
	if got != want {
		t.Fatalf("got=% X\nwant=% X", got, want)
	}
}

func TestFixedFrame_MissingChannelsZero(t *testing.T) {
	got := FixedFrame([]uint16{3000, 3000, 3000})
	want := [FixedFrameLen]byte{
		0xFF, 0xEE,
		0x0B, 0xB8, 0x0B, 0xB8, 0x0B, 0xB8, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x49, 0xD6,
	}
	if got != want {
		t.Fatalf("got=% X\nwant=% X", got, want)
	}
}

func TestFixedFrame_ExtraChannelsDropped(t *testing.T) {
	eight := []uint16{1, 2, 3, 4, 5, 6, 7, 8}
	ten := append(append([]uint16(nil), eight...), 9, 10)
	if FixedFrame(ten) != FixedFrame(eight) {
		t.Fatalf("channels past eight changed the frame")
	}
}

func TestVariableFrame_Golden(t *testing.T) {
	got, err := VariableFrame([]uint16{3000, 3100, 2900, 3500, 2500})
	if err != nil {
		t.Fatalf("VariableFrame: %v", err)
	}
	want := []byte{
		0xFE, 0xEF, 0x05,
		0x0B, 0xB8, 0x0C, 0x1C, 0x0B, 0x54, 0x0D, 0xAC, 0x09, 0xC4,
		0xD5, 0x35,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got=% X\nwant=% X", got, want)
	}
}

func TestVariableFrame_Range(t *testing.T) {
	if _, err := VariableFrame(nil); err == nil {
		t.Fatalf("expected error for no channels")
	}
	if _, err := VariableFrame(make([]uint16, MaxChannels+1)); err == nil {
		t.Fatalf("expected error for too many channels")
	}
	f, err := VariableFrame(make([]uint16, 16))
	if err != nil || len(f) != 3+32+2 || f[2] != 16 {
		t.Fatalf("len=%d count=%d err=%v", len(f), f[2], err)
	}
}

func TestParseVariant(t *testing.T) {
	cases := []struct {
		in   string
		want Variant
		ok   bool
	}{
		{"", Fixed, true},
		{"fixed", Fixed, true},
		{" Variable ", Variable, true},
		{"mavlink", Fixed, false},
	}
	for _, tc := range cases {
		got, err := ParseVariant(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("%q: got=%v err=%v", tc.in, got, err)
		}
	}
	if Variable.String() != "variable" || Variant(7).String() != "unknown" {
		t.Fatalf("String() mismatch")
	}
}
