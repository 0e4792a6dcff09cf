package presentation

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"
)

// HashAlgID identifies a hash algorithm.
type HashAlgID uint8

const (
	HashSHA256    HashAlgID = 1
	HashBLAKE3    HashAlgID = 2
	HashKeccak256 HashAlgID = 3
)

func (id HashAlgID) String() string {
	switch id {
	case HashSHA256:
		return "sha256"
	case HashBLAKE3:
		return "blake3"
	case HashKeccak256:
		return "keccak256"
	default:
		return fmt.Sprintf("hash(%d)", uint8(id))
	}
}

// MaxHashSize is the largest digest a Hash can carry.
const MaxHashSize = 64

// Hash is a digest of at most MaxHashSize bytes.
type Hash []byte

func (h Hash) Equal(other Hash) bool {
	return len(h) == len(other) && subtle.ConstantTimeCompare(h, other) == 1
}

func (h Hash) String() string {
	return hex.EncodeToString(h)
}

func decodeHash(d *decoder) Hash {
	n := d.seqLen(1)
	if d.err == nil && n > MaxHashSize {
		d.fail("hash longer than 64 bytes", nil)
		return nil
	}
	b := d.take(n)
	if b == nil {
		return nil
	}
	return append(Hash(nil), b...)
}

func (h Hash) encode(e *encoder) {
	e.bytes(h)
}

// TypedHash is a digest tagged with the algorithm that produced it.
type TypedHash struct {
	Alg   HashAlgID
	Value Hash
}

func decodeTypedHash(d *decoder) TypedHash {
	return TypedHash{Alg: HashAlgID(d.u8()), Value: decodeHash(d)}
}

func (t TypedHash) encode(e *encoder) {
	e.u8(uint8(t.Alg))
	t.Value.encode(e)
}

// Hasher computes digests for one algorithm.
type Hasher interface {
	ID() HashAlgID
	Hash(data []byte) Hash
}

// DomainSeparatorSize is the length of a type's domain separator.
const DomainSeparatorSize = 16

// domainSeparator derives the prefix hashed in front of values of the named
// type: the first 16 bytes of BLAKE3 over the type name, whatever hash
// algorithm is later applied.
func domainSeparator(typeName string) []byte {
	sum := blake3.Sum256([]byte(typeName))
	return sum[:DomainSeparatorSize]
}

// hashSeparated hashes data under a domain separator.
func hashSeparated(h Hasher, domain, data []byte) Hash {
	buf := make([]byte, 0, len(domain)+len(data))
	buf = append(buf, domain...)
	buf = append(buf, data...)
	return h.Hash(buf)
}

type sha256Hasher struct{}

func (sha256Hasher) ID() HashAlgID { return HashSHA256 }

func (sha256Hasher) Hash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return sum[:]
}

type blake3Hasher struct{}

func (blake3Hasher) ID() HashAlgID { return HashBLAKE3 }

func (blake3Hasher) Hash(data []byte) Hash {
	sum := blake3.Sum256(data)
	return sum[:]
}

type keccakHasher struct{}

func (keccakHasher) ID() HashAlgID { return HashKeccak256 }

func (keccakHasher) Hash(data []byte) Hash {
	return crypto.Keccak256(data)
}
