// Package drivers provides a local-filesystem MainDriver/ClientDriver pair,
// wiring the authorization and virtual-filesystem layers into a concrete
// server that can be pointed at a directory on disk.
package drivers

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/naoina/toml"
	"github.com/spf13/afero"

	ftpd "github.com/coreftpd/ftpserver"
	"github.com/coreftpd/ftpserver/auth"
	"github.com/coreftpd/ftpserver/ftplog"
	"github.com/coreftpd/ftpserver/ftplog/noop"
	"github.com/coreftpd/ftpserver/vfs"
)

// AccountConfig describes one configured user in the settings file.
type AccountConfig struct {
	User       string             // Username
	Pass       string             // Password (cleartext; anonymous accounts may leave this blank)
	Dir        string             // Sub-directory of BaseDir this account is rooted at
	Perm       string             // Permission letters, see auth.AllPermissions
	LoginMsg   string             // Optional custom banner shown on successful login
	QuitMsg    string             // Optional custom banner shown on QUIT
	Overrides  []OverrideConfig   // Per-path permission overrides
}

// OverrideConfig is a per-path permission override for an account.
type OverrideConfig struct {
	Path      string
	Perm      string
	Recursive bool
}

// FileConfig is the on-disk settings file layout, loaded with naoina/toml.
type FileConfig struct {
	Server ftpd.Settings
	Users  []AccountConfig
}

// LocalDriver is a MainDriver serving files from BaseDir, with per-user
// home directories and permissions enforced by auth.Authorizer.
type LocalDriver struct {
	SettingsFile string          // Settings file path
	BaseDir      string          // Base directory from which accounts are rooted
	Logger       ftplog.Logger   // Logger (defaults to a no-op logger)

	mu          sync.Mutex
	config      FileConfig
	authorizer  *auth.Authorizer
	tlsConfig   *tls.Config
	nbClients   int32
}

// NewLocalDriver creates a LocalDriver rooted at dir, loading its account
// list from settingsFile. If dir is empty a temporary directory is used.
func NewLocalDriver(dir, settingsFile string) (*LocalDriver, error) {
	if dir == "" {
		var err error
		dir, err = ioutil.TempDir("", "ftpserver")
		if err != nil {
			return nil, fmt.Errorf("could not find a temporary dir: %w", err)
		}
	}

	return &LocalDriver{
		SettingsFile: settingsFile,
		BaseDir:      dir,
		Logger:       noop.NewNoOpLogger(),
		authorizer:   auth.NewAuthorizer(),
	}, nil
}

// GetSettings loads the settings file and the account list it describes.
func (driver *LocalDriver) GetSettings() (*ftpd.Settings, error) {
	buf, err := ioutil.ReadFile(driver.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("problem loading %q: %w", driver.SettingsFile, err)
	}

	var config FileConfig
	if err := toml.Unmarshal(buf, &config); err != nil {
		return nil, fmt.Errorf("problem parsing %q: %w", driver.SettingsFile, err)
	}

	if len(config.Users) == 0 {
		return nil, errors.New("you must have at least one user defined")
	}

	if config.Server.PublicHost == "" {
		if ip, errIP := externalIP(); errIP == nil {
			driver.Logger.Debug("fetched external IP", "ip", ip)
			config.Server.PublicHost = ip
		} else {
			driver.Logger.Warn("couldn't fetch an external IP", "err", errIP)
		}
	}

	authorizer := auth.NewAuthorizer()

	for _, acct := range config.Users {
		home := driver.BaseDir + string(os.PathSeparator) + acct.Dir

		if err := os.MkdirAll(home, 0o755); err != nil {
			return nil, fmt.Errorf("could not create home dir for %q: %w", acct.User, err)
		}

		perm := acct.Perm
		if perm == "" {
			perm = auth.AllPermissions
		}

		if acct.User == auth.Anonymous {
			if err := authorizer.AddAnonymous(home, perm); err != nil {
				return nil, fmt.Errorf("could not add anonymous account: %w", err)
			}
		} else if err := authorizer.AddUser(acct.User, acct.Pass, home, perm, acct.LoginMsg, acct.QuitMsg); err != nil {
			return nil, fmt.Errorf("could not add account %q: %w", acct.User, err)
		}

		for _, ov := range acct.Overrides {
			if err := authorizer.OverridePerm(acct.User, ov.Path, ov.Perm, ov.Recursive); err != nil {
				return nil, fmt.Errorf("could not apply override for %q: %w", acct.User, err)
			}
		}
	}

	driver.mu.Lock()
	driver.config = config
	driver.authorizer = authorizer
	driver.mu.Unlock()

	return &config.Server, nil
}

// ClientConnected sends the welcome banner and enforces MaxConnections.
func (driver *LocalDriver) ClientConnected(cc ftpd.ClientContext) (string, error) {
	driver.mu.Lock()
	maxConns := driver.config.Server.MaxConnections
	driver.mu.Unlock()

	nbClients := atomic.AddInt32(&driver.nbClients, 1)
	if maxConns > 0 && nbClients > int32(maxConns) {
		return "Cannot accept any additional client", fmt.Errorf("too many clients: %d > %d", nbClients, maxConns)
	}

	return fmt.Sprintf("Welcome, ID %d, %d client(s) connected", cc.ID(), nbClients), nil
}

// ClientDisconnected is called when the user disconnects.
func (driver *LocalDriver) ClientDisconnected(cc ftpd.ClientContext) {
	atomic.AddInt32(&driver.nbClients, -1)
}

// AuthUser authenticates the user and builds their rooted, permission-gated ClientDriver.
func (driver *LocalDriver) AuthUser(cc ftpd.ClientContext, user, pass string) (ftpd.ClientDriver, error) {
	driver.mu.Lock()
	authorizer := driver.authorizer
	driver.mu.Unlock()

	if err := authorizer.ValidateAuthentication(user, pass); err != nil {
		return nil, err
	}

	home := authorizer.GetHomeDir(user)

	guarded, err := vfs.NewGuardedFs(home)
	if err != nil {
		return nil, fmt.Errorf("could not root filesystem at %q: %w", home, err)
	}

	return &clientDriver{
		Fs:         auth.NewPermFs(guarded, authorizer, user),
		loginMsg:   authorizer.GetMsgLogin(user),
		quitMsg:    authorizer.GetMsgQuit(user),
	}, nil
}

// GetTLSConfig returns a TLS config backed by a lazily-generated self-signed
// certificate. Production deployments should instead load a real certificate
// with tls.LoadX509KeyPair and plug it in here.
func (driver *LocalDriver) GetTLSConfig() (*tls.Config, error) {
	driver.mu.Lock()
	defer driver.mu.Unlock()

	if driver.tlsConfig == nil {
		driver.Logger.Info("creating self-signed certificate")

		cert, err := newSelfSignedCertificate()
		if err != nil {
			return nil, err
		}

		driver.tlsConfig = &tls.Config{
			NextProtos:   []string{"ftp"},
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return driver.tlsConfig, nil
}

// clientDriver composes the permission-checked, containment-checked afero.Fs
// with the per-user login/quit banners so the core can surface them without
// depending on auth.Authorizer directly.
type clientDriver struct {
	afero.Fs
	loginMsg string
	quitMsg  string
}

func (d *clientDriver) GetMsgLogin() string { return d.loginMsg }
func (d *clientDriver) GetMsgQuit() string  { return d.quitMsg }

func newSelfSignedCertificate() (*tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}

	now := time.Now().UTC()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1337),
		Subject: pkix.Name{
			CommonName:   "localhost",
			Organization: []string{"FTPServer"},
		},
		DNSNames:              []string{"localhost"},
		SignatureAlgorithm:    x509.SHA256WithRSA,
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour * 24 * 7),
		SubjectKeyId:          []byte{1, 2, 3, 4, 5},
		BasicConstraintsValid: true,
		IsCA:                  false,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		KeyUsage:              x509.KeyUsageDigitalSignature,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("could not create certificate: %w", err)
	}

	var certPem, keyPem bytes.Buffer

	if err := pem.Encode(&certPem, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return nil, err
	}

	if err := pem.Encode(&keyPem, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}); err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPem.Bytes(), keyPem.Bytes())

	return &cert, err
}

// externalIP asks a well-known echo service for our public IP, used as a
// fallback PublicHost when the settings file doesn't name one.
func externalIP() (string, error) {
	rsp, err := http.Get("http://checkip.amazonaws.com")
	if err != nil {
		return "", err
	}
	defer rsp.Body.Close()

	buf, err := ioutil.ReadAll(rsp.Body)
	if err != nil {
		return "", err
	}

	return string(bytes.TrimSpace(buf)), nil
}
