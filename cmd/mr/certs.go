package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Generate a self-signed TLS certificate for the relay",
	Long: `Generate a self-signed certificate and key for serving HTTPS.

Mobile browsers only deliver motion events to secure origins, so a relay
reached over the LAN needs TLS. Point MOTION_TLS_CERT and MOTION_TLS_KEY at
the generated files.`,
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		hosts, _ := cmd.Flags().GetStringSlice("host")
		outDir, _ := cmd.Flags().GetString("out")
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			return fmt.Errorf("--days must be positive, got %d", days)
		}

		certPEM, keyPEM, err := generateSelfSigned(hosts, time.Duration(days)*24*time.Hour, time.Now())
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", outDir, err)
		}
		certPath := filepath.Join(outDir, "cert.pem")
		keyPath := filepath.Join(outDir, "key.pem")
		if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
			return fmt.Errorf("writing certificate: %w", err)
		}
		if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
			return fmt.Errorf("writing key: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wrote %s and %s (valid %d days for %v)\n", certPath, keyPath, days, hosts)
		fmt.Fprintf(out, "serve with: MOTION_TLS_CERT=%s MOTION_TLS_KEY=%s mr serve\n", certPath, keyPath)
		return nil
	},
}

// generateSelfSigned returns PEM-encoded certificate and PKCS#8 key for an
// ECDSA P-256 certificate covering hosts. IP literals become IP SANs.
func generateSelfSigned(hosts []string, validFor time.Duration, now time.Time) (certPEM, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		return nil, nil, fmt.Errorf("at least one host is required")
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generating serial number: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"motionrelay"}, CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func init() {
	certsCmd.Flags().StringSlice("host", []string{"localhost", "127.0.0.1"}, "DNS names or IP addresses the certificate covers")
	certsCmd.Flags().String("out", "certs", "directory to write cert.pem and key.pem")
	certsCmd.Flags().Int("days", 365, "validity period in days")
}
