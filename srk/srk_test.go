package srk_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/molejar/goimx/srk"
)

func selfSignedCert(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert
}

func TestBuildTableAndFuses(t *testing.T) {
	certs := []*x509.Certificate{selfSignedCert(t, "srk0"), selfSignedCert(t, "srk1")}
	table, err := srk.BuildTable(certs)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	if len(table.Digests) != 2 {
		t.Fatalf("expected 2 digests, got %d", len(table.Digests))
	}
	fuses := table.Fuses()
	if len(fuses) != len(certs)*srk.DigestSize {
		t.Fatalf("fuses length = %d, want %d", len(fuses), len(certs)*srk.DigestSize)
	}
}

func TestBuildTableRejectsTooManyKeys(t *testing.T) {
	var certs []*x509.Certificate
	for i := 0; i < srk.MaxKeys+1; i++ {
		certs = append(certs, selfSignedCert(t, "srk"))
	}
	if _, err := srk.BuildTable(certs); err == nil {
		t.Fatal("expected TooManyKeys error")
	}
}

func TestBuildTableRejectsEmpty(t *testing.T) {
	if _, err := srk.BuildTable(nil); err == nil {
		t.Fatal("expected EmptyTable error")
	}
}
