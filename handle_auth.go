// Package ftpserver provides all the tools to build your own FTP server: The core library and the driver.
package ftpd

import (
	"fmt"
	"time"
)

// Handle the "USER" command
func (c *clientHandler) handleUSER(param string) error {
	if c.server.settings.TLSRequired == MandatoryEncryption && !c.HasTLSForControl() {
		c.writeMessage(StatusServiceNotAvailable, "TLS is required")

		return nil
	}

	c.user = param
	c.loginAttempts = 0
	c.writeMessage(StatusUserOK, "OK")

	return nil
}

// Handle the "PASS" command
func (c *clientHandler) handlePASS(param string) error {
	driver, err := c.server.driver.AuthUser(c, c.user, param)
	if err == nil && driver != nil {
		c.driver = driver

		msg := "Password ok, continue"
		if md, ok := driver.(ClientDriverExtensionUserMessages); ok {
			if custom := md.GetMsgLogin(); custom != "" {
				msg = custom
			}
		}

		c.writeMessage(StatusUserLoggedIn, msg)

		return nil
	}

	c.loginAttempts++

	if c.server.settings.AuthFailedTimeout > 0 {
		time.Sleep(c.server.settings.AuthFailedTimeout)
	}

	if c.loginAttempts >= c.server.settings.MaxLoginAttempts {
		c.writeMessage(StatusServiceNotAvailable, "Too many authentication failures, closing connection")
		c.disconnect()

		return nil
	}

	if err != nil {
		c.writeMessage(StatusNotLoggedIn, fmt.Sprintf("Authentication problem: %v", err))
	} else {
		c.writeMessage(StatusNotLoggedIn, "I can't deal with you (nil driver)")
	}

	return nil
}
