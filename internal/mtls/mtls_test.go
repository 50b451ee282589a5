package mtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildTLSConfigDefaults(t *testing.T) {
	cfg, err := BuildTLSConfig(Options{ServerName: "spice.example.com"})
	if err != nil {
		t.Fatalf("BuildTLSConfig: %v", err)
	}
	if cfg.ServerName != "spice.example.com" {
		t.Fatalf("ServerName = %q, want %q", cfg.ServerName, "spice.example.com")
	}
	if cfg.InsecureSkipVerify {
		t.Fatal("InsecureSkipVerify should default to false")
	}
	if cfg.RootCAs != nil {
		t.Fatal("RootCAs should be nil when no CAFile is given")
	}
}

func TestBuildTLSConfigInsecureSkipVerify(t *testing.T) {
	cfg, err := BuildTLSConfig(Options{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("BuildTLSConfig: %v", err)
	}
	if !cfg.InsecureSkipVerify {
		t.Fatal("InsecureSkipVerify should propagate to the tls.Config")
	}
}

func TestBuildTLSConfigLoadsCAFile(t *testing.T) {
	dir := t.TempDir()
	caPEM, _ := generateSelfSigned(t)
	caFile := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(caFile, caPEM, 0o600); err != nil {
		t.Fatalf("write ca file: %v", err)
	}

	cfg, err := BuildTLSConfig(Options{CAFile: caFile})
	if err != nil {
		t.Fatalf("BuildTLSConfig: %v", err)
	}
	if cfg.RootCAs == nil {
		t.Fatal("RootCAs should be populated from CAFile")
	}
}

func TestBuildTLSConfigRejectsMissingCAFile(t *testing.T) {
	_, err := BuildTLSConfig(Options{CAFile: "/nonexistent/ca.pem"})
	if err == nil {
		t.Fatal("expected an error for a missing CA file")
	}
}

func TestBuildTLSConfigRejectsInvalidCAFile(t *testing.T) {
	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(caFile, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write ca file: %v", err)
	}

	_, err := BuildTLSConfig(Options{CAFile: caFile})
	if err == nil {
		t.Fatal("expected an error for a CA file with no valid certificates")
	}
}

// generateSelfSigned returns a PEM-encoded self-signed certificate for
// exercising CA-bundle loading without depending on any real PKI.
func generateSelfSigned(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-ca"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}
