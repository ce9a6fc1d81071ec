package actions

import "testing"

func TestMagicPacketShape(t *testing.T) {
	packet, err := magicPacket("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("magicPacket: %v", err)
	}
	if len(packet) != 102 {
		t.Fatalf("got %d bytes, want 102", len(packet))
	}
	for i := 0; i < 6; i++ {
		if packet[i] != 0xff {
			t.Errorf("byte %d = %#x, want 0xff", i, packet[i])
		}
	}
	want := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	for rep := 0; rep < 16; rep++ {
		for i := 0; i < 6; i++ {
			got := packet[6+rep*6+i]
			if got != want[i] {
				t.Errorf("repetition %d byte %d = %#x, want %#x", rep, i, got, want[i])
			}
		}
	}
}

func TestParseMACRejectsMalformed(t *testing.T) {
	cases := []string{"", "aa:bb:cc", "zz:bb:cc:dd:ee:ff", "aabbccddeeff"}
	for _, c := range cases {
		if _, err := parseMAC(c); err == nil {
			t.Errorf("parseMAC(%q) should have failed", c)
		}
	}
}

func TestParseMACAcceptsDashSeparated(t *testing.T) {
	addr, err := parseMAC("aa-bb-cc-dd-ee-ff")
	if err != nil {
		t.Fatalf("parseMAC: %v", err)
	}
	if len(addr) != 6 {
		t.Fatalf("got %d bytes, want 6", len(addr))
	}
}
