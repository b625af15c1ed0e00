package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker passes when Address accepts a TCP connection. The dial is
// bounded by the context deadline, which the Monitor sets from
// Config.Timeout.
type TCPChecker struct {
	Address string
	dialer  net.Dialer
}

// NewTCPChecker probes a host:port endpoint, such as the SCM API address
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{Address: address}
}

func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	res := Result{CheckedAt: start}

	conn, err := t.dialer.DialContext(ctx, "tcp", t.Address)
	res.Duration = time.Since(start)
	if err != nil {
		res.Message = fmt.Sprintf("%s unreachable: %v", t.Address, err)
		return res
	}
	_ = conn.Close()

	res.Healthy = true
	res.Message = fmt.Sprintf("%s reachable in %s", t.Address, res.Duration.Round(time.Millisecond))
	return res
}

func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}
