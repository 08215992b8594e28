package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// SSLMode controls how PGAdapter answers a client's SSLRequest. The names
// mirror PostgreSQL's sslmode settings but apply to the proxy as a server.
type SSLMode string

const (
	// SSLModeDisable declines every SSLRequest; only plaintext connections
	// are accepted.
	SSLModeDisable SSLMode = "disable"
	// SSLModeAllow accepts both TLS and plaintext connections.
	SSLModeAllow SSLMode = "allow"
	// SSLModeEnable accepts TLS and falls back to plaintext for clients
	// that never ask for it.
	SSLModeEnable SSLMode = "enable"
	// SSLModeRequire rejects clients that do not negotiate TLS.
	SSLModeRequire SSLMode = "require"
)

// TLSConfig configures TLS for incoming client connections. Paths are
// ordinary filesystem paths taken from CLI flags.
type TLSConfig struct {
	// SSLMode controls whether TLS is required, allowed, or disabled.
	SSLMode SSLMode

	// CertPath and CertPrivateKeyPath locate the server certificate and key
	// in PEM format.
	CertPath           string
	CertPrivateKeyPath string

	// GenerateCert generates a self-signed certificate when no cert files
	// are configured (or writes one to the configured paths if they do not
	// exist yet). Intended for local development.
	GenerateCert bool
}

// Validate checks that the TLS configuration is internally consistent and
// that any configured certificate files exist.
func (c *TLSConfig) Validate() error {
	mode := c.SSLMode
	if mode == "" {
		mode = SSLModeDisable
	}

	switch mode {
	case SSLModeDisable, SSLModeAllow, SSLModeEnable, SSLModeRequire:
	default:
		return fmt.Errorf("invalid ssl mode %q: must be one of: disable, allow, enable, require", c.SSLMode)
	}

	if mode == SSLModeDisable {
		return nil
	}

	hasCertPath := c.CertPath != ""
	hasKeyPath := c.CertPrivateKeyPath != ""
	if hasCertPath != hasKeyPath {
		return errors.New("ssl cert and ssl key must both be set or both be empty")
	}

	if !hasCertPath && !c.GenerateCert {
		return errors.New("TLS enabled but no certificate configured: set cert and key paths, or enable certificate generation")
	}

	if hasCertPath && !c.GenerateCert {
		for _, path := range []string{c.CertPath, c.CertPrivateKeyPath} {
			if _, err := os.Stat(path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("certificate file %q does not exist", path)
				}
				return fmt.Errorf("certificate file %q: %w", path, err)
			}
		}
	}

	return nil
}

// Enabled reports whether TLS is enabled in any form.
func (c *TLSConfig) Enabled() bool {
	switch c.SSLMode {
	case SSLModeAllow, SSLModeEnable, SSLModeRequire:
		return true
	default:
		return false
	}
}

// Required reports whether TLS is required for all connections.
func (c *TLSConfig) Required() bool {
	return c.SSLMode == SSLModeRequire
}

// TLSResult is NewTLS's outcome: the server tls.Config (nil when TLS is
// disabled) and the paths of any certificate files written.
type TLSResult struct {
	Config       *tls.Config
	WrittenFiles []string
}

// NewTLS builds the server tls.Config. With GenerateCert, a self-signed
// certificate is generated (and persisted to the configured paths if they
// do not exist yet); otherwise the configured files are loaded. Callers
// should Validate first.
func (c *TLSConfig) NewTLS() (TLSResult, error) {
	if !c.Enabled() {
		return TLSResult{}, nil
	}

	hasCertPaths := c.CertPath != "" && c.CertPrivateKeyPath != ""

	if !c.GenerateCert {
		cert, err := tls.LoadX509KeyPair(c.CertPath, c.CertPrivateKeyPath)
		if err != nil {
			return TLSResult{}, fmt.Errorf("failed to load certificate: %w", err)
		}
		return tlsResultFor(cert, nil), nil
	}

	if hasCertPaths && fileExists(c.CertPath) && fileExists(c.CertPrivateKeyPath) {
		cert, err := tls.LoadX509KeyPair(c.CertPath, c.CertPrivateKeyPath)
		if err != nil {
			return TLSResult{}, fmt.Errorf("failed to load certificate: %w", err)
		}
		return tlsResultFor(cert, nil), nil
	}

	cert, err := generateSelfSignedCert()
	if err != nil {
		return TLSResult{}, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}

	var written []string
	if hasCertPaths {
		if err := writeCertToFiles(cert, c.CertPath, c.CertPrivateKeyPath); err != nil {
			return TLSResult{}, fmt.Errorf("failed to write certificate to files: %w", err)
		}
		written = []string{c.CertPath, c.CertPrivateKeyPath}
	}
	return tlsResultFor(cert, written), nil
}

func tlsResultFor(cert tls.Certificate, written []string) TLSResult {
	return TLSResult{
		Config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		WrittenFiles: written,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeCertToFiles persists a certificate and its private key in PEM form.
func writeCertToFiles(cert tls.Certificate, certPath, keyPath string) (err error) {
	certOut, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("failed to create cert file: %w", err)
	}
	defer func() {
		if cerr := certOut.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close cert file: %w", cerr)
		}
	}()

	for _, certBytes := range cert.Certificate {
		if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certBytes}); err != nil {
			return fmt.Errorf("failed to write cert: %w", err)
		}
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer func() {
		if kerr := keyOut.Close(); kerr != nil && err == nil {
			err = fmt.Errorf("failed to close key file: %w", kerr)
		}
	}()

	privKey, ok := cert.PrivateKey.(*ecdsa.PrivateKey)
	if !ok {
		return errors.New("private key is not ECDSA")
	}

	privDER, err := x509.MarshalECPrivateKey(privKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	return nil
}

// generateSelfSignedCert creates a localhost-scoped self-signed certificate
// for development use.
func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"pgadapter"},
			CommonName:   "pgadapter",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	privDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})

	return tls.X509KeyPair(certPEM, keyPEM)
}
