// Package mtls builds the TLS configuration used by a channel's secure
// connection to the SPICE server.
package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/breeze-rmm/spicec/internal/logging"
)

var log = logging.L("mtls")

// Options controls how a channel's TLS config is built.
type Options struct {
	// CAFile, if set, is a PEM bundle used instead of the system trust store.
	CAFile string
	// ServerName overrides the SNI/verification name (defaults to the dial host).
	ServerName string
	// InsecureSkipVerify disables certificate verification. Set from the
	// --insecure flag or the insecure_skip_verify config key; false by
	// default.
	InsecureSkipVerify bool
	// ClientCertFile / ClientKeyFile configure optional client-certificate auth.
	ClientCertFile string
	ClientKeyFile  string
}

// BuildTLSConfig returns a *tls.Config suitable for dialing a channel's
// secure-port connection.
func BuildTLSConfig(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}

	if opts.InsecureSkipVerify {
		log.Warn("TLS certificate verification disabled")
	}

	if opts.CAFile != "" {
		pool, err := loadCAPool(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("mtls: load CA bundle: %w", err)
		}
		cfg.RootCAs = pool
	}

	if opts.ClientCertFile != "" && opts.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.ClientCertFile, opts.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("mtls: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no valid certificates found in %s", path)
	}
	return pool, nil
}
