//go:build darwin || linux

package conn

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// pending is a half-open non-blocking socket whose connect() has been
// issued but may not have completed yet.
type pending struct {
	fd int
}

// dialStart opens a non-blocking socket and begins connecting to ip:port.
// established is true when connect() succeeded immediately (localhost does
// this); otherwise the caller polls with waitWritable.
func dialStart(ip net.IP, port int) (p *pending, established bool, err error) {
	family, sa := sockaddr(ip, port)
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, false, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, false, err
	}
	unix.CloseOnExec(fd)

	switch err := unix.Connect(fd, sa); err {
	case nil:
		return &pending{fd}, true, nil
	case unix.EINPROGRESS, unix.EINTR:
		return &pending{fd}, false, nil
	default:
		unix.Close(fd)
		return nil, false, err
	}
}

func sockaddr(ip net.IP, port int) (int, unix.Sockaddr) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return unix.AF_INET6, sa
}

// waitWritable polls the socket for writability for at most one poll
// interval, then inspects SO_ERROR. ok=false with nil err means the
// connect is still in progress.
func (p *pending) waitWritable(ms int) (ok bool, err error) {
	pfd := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(pfd, ms)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	soerr, err := unix.GetsockoptInt(p.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, err
	}
	if soerr != 0 {
		return false, unix.Errno(soerr)
	}
	return true, nil
}

// establish hands the connected descriptor over to the runtime poller.
// The pending socket no longer owns the fd afterwards.
func (p *pending) establish() (net.Conn, error) {
	f := os.NewFile(uintptr(p.fd), "tcp")
	p.fd = -1
	defer f.Close() // net.FileConn dups the descriptor
	return net.FileConn(f)
}

func (p *pending) Close() error {
	if p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}
