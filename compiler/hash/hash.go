package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/invmc/compiler"
)

// HashProgram computes the SHA-256 content hash of a program tree.
//
// The hash is computed over a deterministic serialization of the program's
// normalized AST with declaration-indexed variables. Two programs that
// differ only in variable names or source positions produce the same hash.
func HashProgram(root *compiler.Node) ([32]byte, error) {
	h, err := Normalize(root)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(Serialize(h)), nil
}

// HashHex is HashProgram rendered as lower-case hex.
func HashHex(root *compiler.Node) (string, error) {
	sum, err := HashProgram(root)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}
