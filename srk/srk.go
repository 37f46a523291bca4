// Package srk builds the Super Root Key table and fuse bitstream HAB uses
// to authenticate CSF-signed images (spec §3.6's referenced external
// interfaces). Digests use stdlib crypto/x509 and crypto/sha256: no
// third-party crypto library in the retrieved pack covers X.509 parsing or
// hashing any more directly than the standard library already does, so no
// ecosystem dependency is substituted here (DESIGN.md).
package srk

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// MaxKeys is the largest number of root keys a table may hold (spec §3.6).
const MaxKeys = 4

// DigestSize is the SHA-256 digest length recorded for each key.
const DigestSize = sha256.Size

// Kind is the closed set of srk package error conditions.
type Kind int

const (
	_ Kind = iota
	KindTooManyKeys
	KindEmptyTable
)

func (k Kind) String() string {
	switch k {
	case KindTooManyKeys:
		return "TooManyKeys"
	case KindEmptyTable:
		return "EmptyTable"
	default:
		return "Unknown"
	}
}

// Error is the srk package's error type.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

// Table is an ordered set of root key digests (spec §3.6): at most MaxKeys
// certificates, each identified by the SHA-256 digest of its DER-encoded
// public key (SubjectPublicKeyInfo).
type Table struct {
	Digests [][DigestSize]byte
}

// BuildTable computes a Table from the given certificates' public keys.
func BuildTable(certs []*x509.Certificate) (Table, error) {
	if len(certs) == 0 {
		return Table{}, &Error{Kind: KindEmptyTable}
	}
	if len(certs) > MaxKeys {
		return Table{}, &Error{Kind: KindTooManyKeys, Msg: fmt.Sprintf("%d keys, max %d", len(certs), MaxKeys)}
	}
	t := Table{}
	for _, c := range certs {
		t.Digests = append(t.Digests, sha256.Sum256(c.RawSubjectPublicKeyInfo))
	}
	return t, nil
}

// Fuses renders the table's digests as the concatenated byte sequence that
// gets burned into the SoC's one-time-programmable fuse banks: one
// DigestSize-byte digest per key, in table order (spec §6.1: "the fuses
// section is the concatenation of the hash digests").
func (t Table) Fuses() []byte {
	buf := make([]byte, len(t.Digests)*DigestSize)
	for i, d := range t.Digests {
		copy(buf[i*DigestSize:(i+1)*DigestSize], d[:])
	}
	return buf
}

// HashFuse returns the SHA-256 digest of the Fuses() bitstream itself: the
// single digest HAB actually trusts, burned into the SRK hash fuse word
// (spec §3.6).
func (t Table) HashFuse() [DigestSize]byte {
	return sha256.Sum256(t.Fuses())
}
