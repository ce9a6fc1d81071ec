package actions

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// UDPWOLSender is the default WOLSender: it builds the 102-byte magic
// packet (6 bytes of 0xff followed by the target MAC repeated 16 times)
// and broadcasts it over UDP, matching the wire format every Wake-on-LAN
// client uses; no such client appears in the retrieved pack, and the
// format is small enough that a third-party dependency would not reduce
// real complexity.
type UDPWOLSender struct {
	BroadcastAddr string // e.g. "255.255.255.255:9"
}

// NewUDPWOLSender builds a sender broadcasting to the standard
// Wake-on-LAN UDP port 9.
func NewUDPWOLSender() *UDPWOLSender {
	return &UDPWOLSender{BroadcastAddr: "255.255.255.255:9"}
}

func (s *UDPWOLSender) Send(mac string) error {
	packet, err := magicPacket(mac)
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp4", s.BroadcastAddr)
	if err != nil {
		return fmt.Errorf("wol dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("wol send: %w", err)
	}
	return nil
}

func magicPacket(mac string) ([]byte, error) {
	addr, err := parseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("wol: %w", err)
	}

	packet := make([]byte, 0, 102)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xff)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, addr...)
	}
	return packet, nil
}

func parseMAC(mac string) ([]byte, error) {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		parts = strings.Split(mac, "-")
	}
	if len(parts) != 6 {
		return nil, fmt.Errorf("%q is not a 6-octet MAC address", mac)
	}
	addr := make([]byte, 6)
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%q is not a 6-octet MAC address", mac)
		}
		addr[i] = byte(b)
	}
	return addr, nil
}
