package relay

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/logging"
)

// NewTLSConfig creates a TLS configuration compatible with the embedded
// clients that dial the relay. MicroPython's mbedtls builds on ESP32-class
// boards speak TLS 1.2 with a short ECDHE-RSA cipher list, so the relay
// pins exactly that instead of whatever the Go defaults negotiate.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
		zap.String("tls_version", "1.2 only"),
	)

	config := &tls.Config{
		Certificates: []tls.Certificate{cert},

		// mbedtls on the devices does not do TLS 1.3
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,

		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			tls.TLS_RSA_WITH_AES_128_CBC_SHA,
		},

		// Callback to log TLS handshake details
		VerifyConnection: func(cs tls.ConnectionState) error {
			logging.LogTLSHandshake(
				cs.ServerName,
				cs.Version,
				cs.CipherSuite,
				cs.ServerName,
			)
			return nil
		},
	}

	return config, nil
}
