package tls

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestTLSManagerDisabled(t *testing.T) {
	manager, err := NewTLSManagerWithConfig(&TLSConfig{HTTPPort: "80", HTTPSPort: "443"})
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}
	if manager.IsEnabled() {
		t.Error("TLS should be disabled")
	}
	if manager.GetTLSConfig() != nil {
		t.Error("TLS config should be nil when TLS is disabled")
	}
	if manager.NeedsHTTPServer() {
		t.Error("no HTTP server needed without TLS")
	}
	if manager.GetHTTPHandler() != nil {
		t.Error("HTTP handler should be nil without Let's Encrypt and redirect")
	}
}

func TestTLSConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config TLSConfig
	}{
		{"letsencrypt without domain", TLSConfig{EnableTLS: true, EnableLetsEncrypt: true, LetsEncryptEmail: "a@b.c"}},
		{"letsencrypt without email", TLSConfig{EnableTLS: true, EnableLetsEncrypt: true, Domain: "basic.test"}},
		{"manual without files", TLSConfig{EnableTLS: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &TLSManager{config: &tt.config}
			if err := manager.validateConfig(); err == nil {
				t.Error("Expected validation error, but got none")
			}
		})
	}
}

func TestManualTLSWithGeneratedCert(t *testing.T) {
	dir := t.TempDir()
	config := &TLSConfig{
		CertFile:  filepath.Join(dir, "server.crt"),
		KeyFile:   filepath.Join(dir, "keys", "server.key"),
		HTTPSPort: "8443",
	}

	generator := &TLSManager{config: config}
	if err := generator.GenerateSelfSignedCert([]string{"localhost", "127.0.0.1"}, time.Hour); err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}

	config.EnableTLS = true
	manager, err := NewTLSManagerWithConfig(config)
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}
	tlsConfig := manager.GetTLSConfig()
	if tlsConfig == nil || len(tlsConfig.Certificates) != 1 {
		t.Fatalf("expected one loaded certificate, got %+v", tlsConfig)
	}
	leaf := tlsConfig.Certificates[0]
	if len(leaf.Certificate) == 0 {
		t.Error("certificate chain is empty")
	}
}

func TestManualTLSMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := NewTLSManagerWithConfig(&TLSConfig{
		EnableTLS: true,
		CertFile:  filepath.Join(dir, "missing.crt"),
		KeyFile:   filepath.Join(dir, "missing.key"),
	})
	if err == nil {
		t.Error("expected error for missing key pair")
	}
}

func TestLetsEncryptSetup(t *testing.T) {
	manager, err := NewTLSManagerWithConfig(&TLSConfig{
		EnableTLS:         true,
		EnableLetsEncrypt: true,
		Domain:            "basic.test",
		LetsEncryptEmail:  "ops@basic.test",
		CertCacheDir:      filepath.Join(t.TempDir(), "cache"),
	})
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}
	if manager.GetTLSConfig() == nil || manager.GetTLSConfig().GetCertificate == nil {
		t.Error("expected autocert GetCertificate hook")
	}
	if !manager.NeedsHTTPServer() || manager.GetHTTPHandler() == nil {
		t.Error("ACME challenges need the HTTP handler")
	}
	if err := manager.GenerateSelfSignedCert(nil, time.Hour); err == nil {
		t.Error("self-signed generation must be refused with Let's Encrypt")
	}
}

func TestTLSRedirectHandler(t *testing.T) {
	manager := &TLSManager{config: &TLSConfig{EnableTLS: true, ForceHTTPSRedirect: true, HTTPSPort: "8443"}}
	if !manager.NeedsHTTPServer() {
		t.Error("redirect needs the HTTP server")
	}

	w := httptest.NewRecorder()
	manager.GetHTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://basic.test:8080/api/session?x=1", nil))
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://basic.test:8443/api/session?x=1" {
		t.Errorf("unexpected redirect target %q", loc)
	}
}
