package models

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// addressDomain separates derived addresses from any other blake2b digest.
const addressDomain = "ticktr:address"

// Identity is the address of an actor or a program-owned account.
type Identity string

func (i Identity) IsZero() bool {
	return i == ""
}

func (i Identity) String() string {
	return string(i)
}

// DeriveAddress returns the deterministic address for the given seeds.
// Nobody holds a key for a derived address; only the registry itself can
// act with it.
func DeriveAddress(seeds ...string) Identity {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(addressDomain))
	for _, seed := range seeds {
		h.Write(binary.AppendUvarint(nil, uint64(len(seed))))
		h.Write([]byte(seed))
	}
	return Identity(hex.EncodeToString(h.Sum(nil)))
}
