package core

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/transport"
)

// ListenAndServe listens on the configured TCP address and serves until
// ctx is cancelled.
func (c *Core) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.cfg.TCP.Address)
	if err != nil {
		return err
	}
	return c.ServeTCP(ctx, ln)
}

// ServeTCP accepts one client at a time and streams to it until the
// client fails too often or ctx is cancelled. A failed client never
// stops the listener. ln is closed on return.
func (c *Core) ServeTCP(ctx context.Context, ln net.Listener) error {
	c.log.Log("listening on " + ln.Addr().String())
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer func() {
		stop()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				c.log.Log("listener stopped")
				return nil
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return err
		}
		c.log.Log("client " + conn.RemoteAddr().String())
		c.ServeConn(ctx, conn)
	}
}

// ServeConn streams to one accepted client and closes it.
func (c *Core) ServeConn(ctx context.Context, conn net.Conn) Outcome {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	id := atomic.AddUint64(&c.lastID, 1)
	tr := transport.NewTCP(conn, c.cfg.TCP.WriteTimeout.D())
	s := NewTCPSession(id, tr, c.log)
	return c.run(ctx, s, tr)
}

// LocalAddrs lists the non-loopback IPv4 addresses of this host, the
// ones a phone on the same network can connect to.
func LocalAddrs() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var res []string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			res = append(res, ip4.String())
		}
	}
	return res, nil
}
