package actions

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ICMPPinger is the default Pinger: a single ICMP echo request per Ping
// call, implemented directly on golang.org/x/net/icmp since no example in
// the retrieved pack ships a ping client.
type ICMPPinger struct {
	Timeout time.Duration
}

// NewICMPPinger builds an ICMPPinger with a default 2 second timeout.
func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{Timeout: 2 * time.Second}
}

func (p *ICMPPinger) Ping(ctx context.Context, hostname string) (bool, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return false, fmt.Errorf("icmp listen: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4", hostname)
	if err != nil {
		return false, fmt.Errorf("icmp resolve %q: %w", hostname, err)
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: []byte("housemonitor-ping"),
		},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return false, fmt.Errorf("icmp marshal: %w", err)
	}

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false, fmt.Errorf("icmp set deadline: %w", err)
	}

	if _, err := conn.WriteTo(wire, &net.UDPAddr{IP: dst.IP}); err != nil {
		return false, nil // host unreachable is a failed ping, not an error.
	}

	reply := make([]byte, 1500)
	n, _, err := conn.ReadFrom(reply)
	if err != nil {
		return false, nil // timeout or no reply: ping failed, not an error.
	}

	parsed, err := icmp.ParseMessage(1, reply[:n])
	if err != nil {
		return false, nil
	}
	return parsed.Type == ipv4.ICMPTypeEchoReply, nil
}
