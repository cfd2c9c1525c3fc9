// Package ftpserver provides all the tools to build your own FTP server: The core library and the driver.
package ftpd

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"
)

var errUnknowHash = errors.New("unknown hash algorithm")

func (c *clientHandler) handleAUTH(param string) error {
	if tlsConfig, err := c.server.driver.GetTLSConfig(); err == nil {
		c.writeMessage(StatusAuthAccepted, "AUTH command ok. Expecting TLS Negotiation.")
		c.conn = tls.Server(c.conn, tlsConfig)
		c.reader = bufio.NewReader(c.conn)
		c.writer = bufio.NewWriter(c.conn)
		c.controlTLS = true
	} else {
		c.writeMessage(StatusActionNotTaken, fmt.Sprintf("Cannot get a TLS config: %v", err))
	}

	return nil
}

func (c *clientHandler) handlePROT(param string) error {
	// P for Private, C for Clear
	c.setTLSForTransfer(param == "P")
	c.writeMessage(StatusOK, "OK")

	return nil
}

func (c *clientHandler) handlePBSZ(param string) error {
	c.writeMessage(StatusOK, "Whatever")
	return nil
}

func (c *clientHandler) handleSYST(param string) error {
	if c.server.settings.DisableSYST {
		c.writeMessage(StatusCommandNotImplemented, "SYST is disabled")
		return nil
	}

	c.writeMessage(StatusSystemType, "UNIX Type: L8")

	return nil
}

func (c *clientHandler) handleSTAT(param string) error {
	if param == "" { // Without a file, it's the server stat
		return c.handleSTATServer()
	}

	// With a file/dir it's the file or the dir's files stat
	return c.handleSTATFile(param)
}

func (c *clientHandler) handleSITE(param string) error {
	if c.server.settings.DisableSite {
		c.writeMessage(StatusSyntaxErrorNotRecognised, "SITE support is disabled")
		return nil
	}

	spl := strings.SplitN(param, " ", 2)

	switch strings.ToUpper(spl[0]) {
	case "CHMOD", "CHOWN", "SYMLINK":
		if len(spl) < 2 {
			c.writeMessage(StatusSyntaxErrorParameters, "Missing parameters")
			return nil
		}

		switch strings.ToUpper(spl[0]) {
		case "CHMOD":
			c.handleCHMOD(spl[1])
		case "CHOWN":
			c.handleCHOWN(spl[1])
		case "SYMLINK":
			c.handleSYMLINK(spl[1])
		}

		return nil
	case "MKDIR":
		if len(spl) < 2 {
			c.writeMessage(StatusSyntaxErrorNotRecognised, "Missing directory")
			return nil
		}

		p := c.absPath(spl[1])

		if err := c.driver.Mkdir(p, 0755); err != nil {
			c.writeMessage(StatusActionNotTaken, fmt.Sprintf("Could not create %q: %v", p, err))
		} else {
			c.writeMessage(StatusFileOK, fmt.Sprintf("Created dir %s", p))
		}

		return nil
	case "RMDIR":
		if len(spl) < 2 {
			c.writeMessage(StatusSyntaxErrorNotRecognised, "Missing directory")
			return nil
		}

		p := c.absPath(spl[1])

		var err error
		if rmd, ok := c.driver.(ClientDriverExtensionRemoveDir); ok {
			err = rmd.RemoveDir(p)
		} else {
			err = c.driver.RemoveAll(p)
		}

		if err != nil {
			c.writeMessage(StatusActionNotTaken, fmt.Sprintf("Could not delete dir %s: %v", p, err))
		} else {
			c.writeMessage(StatusFileOK, fmt.Sprintf("Deleted dir %s", p))
		}

		return nil
	}

	c.writeMessage(StatusSyntaxErrorNotRecognised, fmt.Sprintf("Unknown SITE subcommand: %s", strings.ToUpper(spl[0])))

	return nil
}

func (c *clientHandler) handleSTATServer() error {
	if c.server.settings.DisableSTAT {
		c.writeMessage(StatusCommandNotImplemented, "STAT is disabled")
		return nil
	}

	// drakkan(2020-12-17): we don't handle STAT properly,
	// we should return the status for all the transfers and we should allow
	// stat while a transfer is in progress, see RFC 959
	defer c.multilineAnswer(StatusSystemStatus, "Server status")()

	duration := time.Now().UTC().Sub(c.connectedAt)
	duration -= duration % time.Second
	c.writeLine(fmt.Sprintf(
		"Connected to %s from %s for %s",
		c.server.settings.ListenAddr,
		c.conn.RemoteAddr(),
		duration,
	))

	if c.user != "" {
		c.writeLine(fmt.Sprintf("Logged in as %s", c.user))
	} else {
		c.writeLine("Not logged in yet")
	}

	c.writeLine(c.server.settings.Banner)

	return nil
}

func (c *clientHandler) handleOPTS(param string) error {
	args := strings.SplitN(param, " ", 2)
	if strings.EqualFold(args[0], "UTF8") {
		c.writeMessage(StatusOK, "I'm in UTF8 only anyway")
		return nil
	}

	if strings.EqualFold(args[0], "HASH") && c.server.settings.EnableHASH {
		hashMapping := getHashMapping()

		if len(args) > 1 {
			// try to change the current hash algorithm to the requested one
			if value, ok := hashMapping[args[1]]; ok {
				c.selectedHashAlgo = value
				c.writeMessage(StatusOK, args[1])
			} else {
				c.writeMessage(StatusSyntaxErrorParameters, "Unknown algorithm, current selection not changed")
			}

			return nil
		}
		// return the current hash algorithm
		var currentHash string

		for k, v := range hashMapping {
			if v == c.selectedHashAlgo {
				currentHash = k
			}
		}

		c.writeMessage(StatusOK, currentHash)

		return nil
	}

	c.writeMessage(StatusSyntaxErrorNotRecognised, "Don't know this option")

	return nil
}

func (c *clientHandler) handleNOOP(param string) error {
	c.writeMessage(StatusOK, "OK")
	return nil
}

func (c *clientHandler) handleCLNT(param string) error {
	c.setClientVersion(param)
	c.writeMessage(StatusOK, "Good to know")

	return nil
}

func (c *clientHandler) handleFEAT(param string) error {
	c.writeLine(fmt.Sprintf("%d- These are my features", StatusSystemStatus))
	defer c.writeMessage(StatusSystemStatus, "end")

	features := []string{
		"CLNT",
		"UTF8",
		"SIZE",
		"MDTM",
		"REST STREAM",
	}

	if !c.server.settings.DisableMLSD {
		features = append(features, "MLSD")
	}

	if !c.server.settings.DisableMLST {
		features = append(features, "MLST")
	}

	if !c.server.settings.DisableMFMT {
		features = append(features, "MFMT")
	}

	if tlsConfig, err := c.server.driver.GetTLSConfig(); tlsConfig != nil && err == nil {
		features = append(features, "AUTH TLS")
	}

	if c.server.settings.EnableHASH {
		var hashLine strings.Builder

		nonStandardHashImpl := []string{"XCRC", "MD5", "XMD5", "XSHA", "XSHA1", "XSHA256", "XSHA512"}
		hashMapping := getHashMapping()

		for k, v := range hashMapping {
			hashLine.WriteString(k)

			if v == c.selectedHashAlgo {
				hashLine.WriteString("*")
			}

			hashLine.WriteString(";")
		}

		features = append(features, hashLine.String())
		features = append(features, nonStandardHashImpl...)
	}

	if c.server.settings.EnableCOMB {
		features = append(features, "COMB")
	}

	if c.server.settings.EnableMODEZ {
		features = append(features, "MODE Z")
	}

	if _, ok := c.driver.(ClientDriverExtensionAvailableSpace); ok {
		features = append(features, "AVBL")
	}

	for _, f := range features {
		c.writeLine(" " + f)
	}

	return nil
}

func (c *clientHandler) handleTYPE(param string) error {
	args := strings.Fields(param)
	if len(args) == 0 {
		c.writeMessage(StatusSyntaxErrorNotRecognised, "Not understood")
		return nil
	}

	switch strings.ToUpper(args[0]) {
	case "I":
		c.currentTransferType = TransferTypeBinary
		c.writeMessage(StatusOK, "Type set to binary")
	case "A":
		c.currentTransferType = TransferTypeASCII
		c.writeMessage(StatusOK, "Type set to ASCII")
	case "L":
		// TYPE L <byte-size>: local byte size, 8 and 7 are accepted and both select binary
		if len(args) > 1 && args[1] != "8" && args[1] != "7" {
			c.writeMessage(StatusNotImplementedParam, "Not understood")
			return nil
		}

		c.currentTransferType = TransferTypeBinary
		c.writeMessage(StatusOK, "Type set to binary")
	default:
		c.writeMessage(StatusNotImplementedParam, "Not understood")
	}

	return nil
}

func (c *clientHandler) handleQUIT(param string) error {
	// a transfer in progress is allowed to finish and send its reply first
	c.transferWg.Wait()

	msg := "Goodbye"

	if md, ok := c.driver.(ClientDriverExtensionUserMessages); ok {
		if custom := md.GetMsgQuit(); custom != "" {
			msg = custom
		}
	}

	c.writeMessage(StatusClosingControlConn, msg)
	c.disconnect()
	c.reader = nil

	return nil
}

func (c *clientHandler) handleMODE(param string) error {
	switch {
	case strings.EqualFold(param, "S"):
		c.transferMode = 'S'
		c.writeMessage(StatusOK, "OK")
	case strings.EqualFold(param, "Z") && c.server.settings.EnableMODEZ:
		c.transferMode = 'Z'
		c.writeMessage(StatusOK, "OK")
	default:
		c.writeMessage(StatusCommandNotImplemented, "Only S(tream) and Z(deflate) modes are supported")
	}

	return nil
}

func (c *clientHandler) handleABOR(param string) error {
	c.transferMu.Lock()
	hadTransfer := c.transfer != nil
	c.isTransferAborted = true
	err := c.closeTransfer()
	c.transferMu.Unlock()

	if err != nil {
		c.logger.Warn("Problem aborting transfer", "err", err)
	}

	if hadTransfer {
		c.writeMessage(StatusTransferAborted, "Connection closed; transfer aborted")
	}

	c.writeMessage(StatusClosingDataConn, "ABOR command successful")

	return nil
}

func (c *clientHandler) handleNotImplemented(param string) error {
	c.writeMessage(StatusCommandNotImplemented, "Not implemented")

	return nil
}

func (c *clientHandler) handleAVBL(param string) error {
	if avbl, ok := c.driver.(ClientDriverExtensionAvailableSpace); ok {
		path := c.absPath(param)

		info, err := c.driver.Stat(path)
		if err != nil {
			c.writeMessage(StatusActionNotTaken, fmt.Sprintf("Couldn't access %s: %v", path, err))
			return nil
		}

		if !info.IsDir() {
			c.writeMessage(StatusActionNotTaken, fmt.Sprintf("%s: is not a directory", path))
			return nil
		}

		available, err := avbl.GetAvailableSpace(path)
		if err != nil {
			c.writeMessage(StatusActionNotTaken, fmt.Sprintf("Couldn't get space for path %s: %v", path, err))
			return nil
		}

		c.writeMessage(StatusFileStatus, fmt.Sprintf("%d", available))
	} else {
		c.writeMessage(StatusNotImplemented, "This extension hasn't been implemented !")
	}

	return nil
}
