// Package ftpserver provides all the tools to build your own FTP server: The core library and the driver.
package ftpd

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

func (c *clientHandler) handlePORT(param string) error {
	if c.server.settings.DisableActiveMode {
		c.writeMessage(StatusServiceNotAvailable, "PORT command is disabled")

		return nil
	}

	if c.epsvAllLocked {
		c.writeMessage(StatusSyntaxErrorNotRecognised, "EPSV ALL in effect, only EPSV is allowed")

		return nil
	}

	if c.server.settings.TLSDataRequired && !c.transferTLS {
		c.writeMessage(StatusActionNotTakenNoFile, "TLS is required on data connections, issue PROT P first")

		return nil
	}

	raddr, err := parseRemoteAddr(param)

	if err != nil {
		c.writeMessage(StatusSyntaxErrorParameters, fmt.Sprintf("Problem parsing PORT: %v", err))
		return nil
	}

	if raddr.Port < 1024 && !c.server.settings.PermitPrivilegedPorts {
		c.writeMessage(StatusServiceNotAvailable, "Privileged ports are not allowed")
		return nil
	}

	if !c.server.settings.PermitForeignAddresses {
		remoteIP, _, _ := net.SplitHostPort(c.RemoteAddr().String())
		if remoteIP != raddr.IP.String() {
			c.writeMessage(StatusServiceNotAvailable, "Foreign addresses are not allowed")
			return nil
		}
	}

	var tlsConfig *tls.Config

	if c.transferTLS || c.server.settings.TLSRequired == ImplicitEncryption {
		tlsConfig, err = c.server.driver.GetTLSConfig()
		if err != nil {
			c.writeMessage(StatusServiceNotAvailable, fmt.Sprintf("Cannot get a TLS config for active connection: %v", err))
			return nil
		}
	}

	c.writeMessage(StatusOK, "PORT command successful")
	c.transfer = &activeTransferHandler{
		raddr:     raddr,
		settings:  c.server.settings,
		tlsConfig: tlsConfig,
	}
	c.setLastDataChannel(DataChannelActive)

	return nil
}

// Active connection
type activeTransferHandler struct {
	raddr     *net.TCPAddr // Remote address of the client
	conn      net.Conn     // Connection used to connect to him
	settings  *Settings    // Settings
	tlsConfig *tls.Config  // not nil if the active connection requires TLS
	info      string       // transfer info
}

// GetInfo returns the info about the transfer to return in STAT response.
func (a *activeTransferHandler) GetInfo() string {
	return a.info
}

// SetInfo sets the info about the transfer to return in STAT response.
func (a *activeTransferHandler) SetInfo(info string) {
	a.info = info
}

func (a *activeTransferHandler) Open() (net.Conn, error) {
	timeout := time.Duration(time.Second.Nanoseconds() * int64(a.settings.ConnectionTimeout))
	dialer := &net.Dialer{Timeout: timeout}

	if !a.settings.ActiveTransferPortNon20 {
		dialer.LocalAddr, _ = net.ResolveTCPAddr("tcp", ":20")
		// binding every active transfer to the same local port requires
		// SO_REUSEADDR/SO_REUSEPORT so concurrent transfers don't collide.
		dialer.Control = Control
	}
	// TODO(mgenov): support dialing with timeout
	// Issues:
	//	https://github.com/golang/go/issues/3097
	// 	https://github.com/golang/go/issues/4842
	conn, err := dialer.Dial("tcp", a.raddr.String())

	if err != nil {
		return nil, fmt.Errorf("could not establish active connection: %w", err)
	}

	if a.tlsConfig != nil {
		conn = tls.Server(conn, a.tlsConfig)
	}

	// keep connection as it will be closed by Close()
	a.conn = conn

	return a.conn, nil
}

// Close closes only if connection is established
func (a *activeTransferHandler) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}

	return nil
}

var remoteAddrRegex = regexp.MustCompile(`^([0-9]{1,3},){5}[0-9]{1,3}$`)

// ErrRemoteAddrFormat is returned when the remote address has a bad format
var ErrRemoteAddrFormat = errors.New("remote address has a bad format")

// parseRemoteAddr parses remote address of the client from param. This address
// is used for establishing a connection with the client.
//
// Param Format: 192,168,150,80,14,178
// Host: 192.168.150.80
// Port: (14 * 256) + 178
func parseRemoteAddr(param string) (*net.TCPAddr, error) {
	if !remoteAddrRegex.Match([]byte(param)) {
		return nil, fmt.Errorf("could not parse %s: %w", param, ErrRemoteAddrFormat)
	}

	params := strings.Split(param, ",")

	ip := strings.Join(params[0:4], ".")

	p1, err := strconv.Atoi(params[4])
	if err != nil {
		return nil, err
	}

	p2, err := strconv.Atoi(params[5])

	if err != nil {
		return nil, err
	}

	port := p1<<8 + p2

	return net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", ip, port))
}
