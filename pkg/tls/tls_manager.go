package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// TLSManager handles TLS certificate management including Let's Encrypt
type TLSManager struct {
	config      *TLSConfig
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
	initialized bool
}

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	EnableTLS          bool
	EnableLetsEncrypt  bool
	Domain             string
	LetsEncryptEmail   string
	CertCacheDir       string
	ForceHTTPSRedirect bool
	CertFile           string
	KeyFile            string
	HTTPPort           string
	HTTPSPort          string
}

// ConfigFromSettings liest die [TLS] Sektion
func ConfigFromSettings() *TLSConfig {
	return &TLSConfig{
		EnableTLS:          configuration.GetBool("TLS", "enable_tls", false),
		EnableLetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		LetsEncryptEmail:   configuration.GetString("TLS", "letsencrypt_email", ""),
		CertCacheDir:       configuration.GetString("TLS", "cert_cache_dir", "certs"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		CertFile:           configuration.GetString("TLS", "cert_file", ""),
		KeyFile:            configuration.GetString("TLS", "key_file", ""),
		HTTPPort:           configuration.GetString("TLS", "http_port", "80"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "443"),
	}
}

// NewTLSManager creates a TLS manager from the [TLS] settings.
func NewTLSManager() (*TLSManager, error) {
	return NewTLSManagerWithConfig(ConfigFromSettings())
}

// NewTLSManagerWithConfig validates config and prepares certificates.
func NewTLSManagerWithConfig(config *TLSConfig) (*TLSManager, error) {
	manager := &TLSManager{
		config: config,
	}

	if err := manager.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %w", err)
	}

	if config.EnableTLS {
		if err := manager.initializeTLS(); err != nil {
			return nil, fmt.Errorf("TLS initialization failed: %w", err)
		}
	}

	return manager, nil
}

// validateConfig validates the TLS configuration
func (tm *TLSManager) validateConfig() error {
	if !tm.config.EnableTLS {
		return nil
	}
	if tm.config.EnableLetsEncrypt {
		if strings.TrimSpace(tm.config.Domain) == "" {
			return fmt.Errorf("domain is required when Let's Encrypt is enabled")
		}
		if strings.TrimSpace(tm.config.LetsEncryptEmail) == "" {
			return fmt.Errorf("letsencrypt_email is required when Let's Encrypt is enabled")
		}
		if strings.Contains(tm.config.Domain, "example.com") {
			logger.Warn(logger.AreaTLS, "Using example domain - change this in production!")
		}
		return nil
	}
	if tm.config.CertFile == "" || tm.config.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file are required without Let's Encrypt")
	}
	return nil
}

// initializeTLS sets up TLS configuration
func (tm *TLSManager) initializeTLS() error {
	if tm.config.EnableLetsEncrypt {
		return tm.initializeLetsEncrypt()
	}
	return tm.initializeManualTLS()
}

// initializeLetsEncrypt sets up Let's Encrypt automatic certificate management
func (tm *TLSManager) initializeLetsEncrypt() error {
	logger.Info(logger.AreaTLS, "Initializing Let's Encrypt for domain: %s", tm.config.Domain)

	if err := os.MkdirAll(tm.config.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %w", err)
	}

	tm.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(tm.config.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      tm.config.LetsEncryptEmail,
		HostPolicy: autocert.HostWhitelist(tm.config.Domain, "www."+tm.config.Domain),
	}

	tm.tlsConfig = &tls.Config{
		GetCertificate: func(clientHello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			// Ohne SNI wird die konfigurierte Domain verwendet
			if clientHello.ServerName == "" {
				clientHello.ServerName = tm.config.Domain
			}
			cert, err := tm.autocertMgr.GetCertificate(clientHello)
			if err != nil {
				logger.Warn(logger.AreaTLS, "Failed to get certificate for %s: %v", clientHello.ServerName, err)
				return nil, err
			}
			return cert, nil
		},
		NextProtos: []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion: tls.VersionTLS12,
	}

	tm.initialized = true
	logger.Info(logger.AreaTLS, "Let's Encrypt TLS manager initialized successfully")
	return nil
}

// initializeManualTLS loads the configured key pair
func (tm *TLSManager) initializeManualTLS() error {
	logger.Info(logger.AreaTLS, "Initializing manual TLS with cert: %s, key: %s", tm.config.CertFile, tm.config.KeyFile)

	cert, err := tls.LoadX509KeyPair(tm.config.CertFile, tm.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	tm.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	tm.initialized = true
	logger.Info(logger.AreaTLS, "Manual TLS manager initialized successfully")
	return nil
}

// GetTLSConfig returns the TLS configuration for the HTTP server
func (tm *TLSManager) GetTLSConfig() *tls.Config {
	if !tm.initialized || !tm.config.EnableTLS {
		return nil
	}
	return tm.tlsConfig
}

// GetHTTPHandler returns the handler for the plain HTTP port: ACME
// challenges with Let's Encrypt, otherwise the HTTPS redirect.
func (tm *TLSManager) GetHTTPHandler() http.Handler {
	redirect := tm.GetHTTPSRedirectHandler()
	if tm.autocertMgr != nil {
		return tm.autocertMgr.HTTPHandler(redirect)
	}
	return redirect
}

// NeedsHTTPServer returns true if HTTP server is needed (for Let's Encrypt challenges or redirects)
func (tm *TLSManager) NeedsHTTPServer() bool {
	return tm.config.EnableTLS && (tm.config.EnableLetsEncrypt || tm.config.ForceHTTPSRedirect)
}

// GetHTTPSRedirectHandler returns a handler that redirects HTTP to HTTPS
func (tm *TLSManager) GetHTTPSRedirectHandler() http.Handler {
	if !tm.config.ForceHTTPSRedirect {
		return nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		httpsURL := fmt.Sprintf("https://%s", host)
		if tm.config.HTTPSPort != "443" {
			httpsURL = fmt.Sprintf("https://%s:%s", host, tm.config.HTTPSPort)
		}
		httpsURL += r.URL.RequestURI()

		logger.Debug(logger.AreaTLS, "Redirecting HTTP to HTTPS: %s -> %s", r.URL.String(), httpsURL)
		http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
	})
}

// IsEnabled returns true if TLS is enabled
func (tm *TLSManager) IsEnabled() bool {
	return tm.config.EnableTLS
}

// GetHTTPPort returns the HTTP port
func (tm *TLSManager) GetHTTPPort() string {
	return tm.config.HTTPPort
}

// GetHTTPSPort returns the HTTPS port
func (tm *TLSManager) GetHTTPSPort() string {
	return tm.config.HTTPSPort
}

// GenerateSelfSignedCert writes a self-signed certificate for development to
// the configured cert and key files.
func (tm *TLSManager) GenerateSelfSignedCert(hosts []string, validFor time.Duration) error {
	if tm.config.EnableLetsEncrypt {
		return fmt.Errorf("cannot generate self-signed certificate when Let's Encrypt is enabled")
	}
	if tm.config.CertFile == "" || tm.config.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file must be set")
	}
	logger.Info(logger.AreaTLS, "Generating self-signed certificate for development")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"RetroBASIC development"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := writePEM(tm.config.CertFile, "CERTIFICATE", der, 0644); err != nil {
		return err
	}
	return writePEM(tm.config.KeyFile, "PRIVATE KEY", keyBytes, 0600)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
