package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CertManager issues development certificates signed by a local CA.
// The CA is generated once and cached on disk; leaf certificates live in memory.
type CertManager struct {
	caCert     *x509.Certificate
	caKey      *rsa.PrivateKey
	certCache  map[string]*tls.Certificate
	cacheMutex sync.RWMutex
	caPath     string
	keyPath    string
}

// NewCertManager loads the CA at caPath/keyPath, generating it when missing
func NewCertManager(caPath, keyPath string) (*CertManager, error) {
	cm := &CertManager{
		certCache: make(map[string]*tls.Certificate),
		caPath:    caPath,
		keyPath:   keyPath,
	}

	if err := cm.loadCA(); err != nil {
		log.Printf("[CertManager] No usable CA certificate, generating one: %v", err)
		if err := cm.generateCA(); err != nil {
			return nil, fmt.Errorf("failed to generate CA certificate: %w", err)
		}
	}

	return cm, nil
}

func (cm *CertManager) loadCA() error {
	certPEM, err := os.ReadFile(cm.caPath)
	if err != nil {
		return err
	}
	keyPEM, err := os.ReadFile(cm.keyPath)
	if err != nil {
		return err
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return fmt.Errorf("failed to decode CA certificate PEM")
	}
	cm.caCert, err = x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse CA certificate: %w", err)
	}
	if time.Now().After(cm.caCert.NotAfter) {
		return fmt.Errorf("CA certificate expired on %s", cm.caCert.NotAfter.Format(time.DateOnly))
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return fmt.Errorf("failed to decode CA key PEM")
	}
	cm.caKey, err = x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse CA key: %w", err)
	}

	log.Printf("[CertManager] Loaded CA certificate from %s", cm.caPath)
	return nil
}

func (cm *CertManager) generateCA() error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate CA key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"pagepack development CA"},
			CommonName:   "pagepack development CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create CA certificate: %w", err)
	}

	cm.caCert, err = x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("failed to parse generated CA certificate: %w", err)
	}
	cm.caKey = key

	if err := cm.saveCA(); err != nil {
		return fmt.Errorf("failed to save CA certificate: %w", err)
	}

	log.Printf("[CertManager] Generated new CA certificate at %s", cm.caPath)
	return nil
}

func (cm *CertManager) saveCA() error {
	for _, p := range []string{cm.caPath, cm.keyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
			return fmt.Errorf("failed to create certificate directory: %w", err)
		}
	}

	if err := os.WriteFile(cm.caPath, cm.CACertPEM(), 0644); err != nil { // #nosec G306 - public certificate
		return fmt.Errorf("failed to write CA certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(cm.caKey),
	})
	if err := os.WriteFile(cm.keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write CA key: %w", err)
	}
	return nil
}

// CACertPEM returns the CA certificate in PEM format, for importing into a browser
func (cm *CertManager) CACertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cm.caCert.Raw,
	})
}

// TLSConfig returns a server TLS configuration backed by GetCertificate
func (cm *CertManager) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: cm.GetCertificate,
	}
}

// GetCertificate returns a leaf certificate for the requested server name,
// defaulting to localhost when the client sends no SNI
func (cm *CertManager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	host := "localhost"
	if hello != nil && hello.ServerName != "" {
		host = hello.ServerName
	}
	return cm.GetCert(host)
}

// GetCert generates or retrieves a cached certificate for hostname
func (cm *CertManager) GetCert(hostname string) (*tls.Certificate, error) {
	cm.cacheMutex.RLock()
	if cert, ok := cm.certCache[hostname]; ok {
		cm.cacheMutex.RUnlock()
		return cert, nil
	}
	cm.cacheMutex.RUnlock()

	cert, err := cm.generateCert(hostname)
	if err != nil {
		log.Printf("[CertManager] Failed to generate certificate for %s: %v", hostname, err)
		return nil, err
	}

	cm.cacheMutex.Lock()
	cm.certCache[hostname] = cert
	cm.cacheMutex.Unlock()

	log.Printf("[CertManager] Issued certificate for %s", hostname)
	return cert, nil
}

func (cm *CertManager) generateCert(hostname string) (*tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"pagepack development"},
			CommonName:   host,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}
	if host == "localhost" {
		template.IPAddresses = append(template.IPAddresses, net.IPv4(127, 0, 0, 1), net.IPv6loopback)
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, cm.caCert, &key.PublicKey, cm.caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER, cm.caCert.Raw},
		PrivateKey:  key,
	}, nil
}
