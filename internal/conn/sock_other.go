//go:build !darwin && !linux

package conn

import (
	"context"
	"net"
	"strconv"
	"time"
)

// pending on platforms without unix poll support: a goroutine runs the
// blocking dial and waitWritable observes its completion. Same surface as
// the unix variant.
type pending struct {
	done   chan struct{}
	cancel context.CancelFunc
	conn   net.Conn
	err    error
}

func dialStart(ip net.IP, port int) (*pending, bool, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pending{done: make(chan struct{}), cancel: cancel}
	go func() {
		var d net.Dialer
		p.conn, p.err = d.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
		close(p.done)
	}()
	return p, false, nil
}

func (p *pending) waitWritable(ms int) (bool, error) {
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-p.done:
		if p.err != nil {
			return false, p.err
		}
		return true, nil
	case <-t.C:
		return false, nil
	}
}

func (p *pending) establish() (net.Conn, error) {
	c := p.conn
	p.conn = nil
	return c, nil
}

func (p *pending) Close() error {
	p.cancel()
	<-p.done
	if p.conn != nil {
		c := p.conn
		p.conn = nil
		return c.Close()
	}
	return nil
}
