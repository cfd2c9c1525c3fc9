// Command ftpserver runs a standalone FTP(S) server serving a local
// directory, configured from a TOML settings file.
package main

import (
	"flag"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	ftpd "github.com/coreftpd/ftpserver"
	"github.com/coreftpd/ftpserver/drivers"
	"github.com/coreftpd/ftpserver/ftplog/gokit"
)

var ftpServer *ftpd.FtpServer

func main() {
	var confFile, dataDir string

	var onlyConf bool

	flag.StringVar(&confFile, "conf", "", "Configuration file")
	flag.StringVar(&dataDir, "data", "", "Data directory")
	flag.BoolVar(&onlyConf, "conf-only", false, "Only create the config")
	flag.Parse()

	logger := gokit.NewStdoutLogger()

	autoCreate := onlyConf

	// The general idea here is that if you start it without any arg, you're
	// probably doing a local quick run, so we're better off using a default
	// file name and creating it.
	if confFile == "" {
		confFile = "settings.toml"
		autoCreate = true
	}

	if autoCreate {
		if _, err := os.Stat(confFile); err != nil {
			if os.IsNotExist(err) {
				logger.Info("no config file, creating one", "confFile", confFile)

				if err = ioutil.WriteFile(confFile, confFileContent(), 0o644); err != nil {
					logger.Error("couldn't create config file", "confFile", confFile, "err", err)
				}
			} else {
				logger.Error("couldn't stat config file", "confFile", confFile, "err", err)
			}
		}
	}

	driver, err := drivers.NewLocalDriver(dataDir, confFile)
	if err != nil {
		logger.Error("could not load the driver", "err", err)
		os.Exit(1)
	}

	driver.Logger = logger.With("component", "driver")

	ftpServer = ftpd.NewFtpServer(driver)
	ftpServer.Logger = logger.With("component", "server")

	if onlyConf {
		logger.Info("only creating conf")
		return
	}

	done := make(chan struct{})
	go signalHandler(done)

	if err := ftpServer.ListenAndServe(); err != nil {
		if !ftpServer.Stopped() {
			logger.Error("problem listening", "err", err)
			close(done)
			os.Exit(1)
		}
	}
}

func signalHandler(done chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM)
	defer signal.Stop(ch)

	for {
		select {
		case sig := <-ch:
			if sig == syscall.SIGTERM {
				ftpServer.Stop()
				return
			}
		case <-done:
			return
		}
	}
}

func confFileContent() []byte {
	str := `# ftpserver configuration file
#
# These are the main config parameters, with sample values. Parameters that are
# not present fall back to the hardcoded defaults documented in Settings.

[Server]
ListenAddr = "0.0.0.0:2121"
# PublicHost = ""
IdleTimeout = 900
MaxConnections = 10
MaxConnectionsPerIP = 0
MaxLoginAttempts = 3

[Server.PassiveTransferPortRange]
Start = 2122
End = 2200

[[Users]]
User = "test"
Pass = "test"
Dir = "shared"
Perm = "elradfmwMT"

[[Users]]
User = "anonymous"
Dir = "anonymous"
Perm = "elr"
`

	return []byte(str)
}
