package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/vk/taskforge/internal/project"
)

// fingerprintDoc is the canonical shape that gets hashed. JSON encoding of a
// struct with sorted map keys is deterministic, which makes the fingerprint
// stable across runs and platforms.
type fingerprintDoc struct {
	Address string            `json:"address"`
	Inputs  map[string]string `json:"inputs,omitempty"`
	Outputs []string          `json:"outputs,omitempty"`
	Deps    map[string]string `json:"deps,omitempty"`
}

// Fingerprint computes the content hash for a task: its declared fingerprint
// inputs and output locations plus the realized fingerprints of its
// dependencies. Any upstream change therefore cascades downstream.
func Fingerprint(t *project.Task, depFingerprints map[string]string) string {
	doc := fingerprintDoc{
		Address: t.Addr.String(),
		Inputs:  t.Inputs,
		Outputs: t.Outputs,
		Deps:    depFingerprints,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		// Marshalling string maps cannot fail; keep the signature simple.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EnvKey computes the coarse environment-cache key from the lock file
// contents and a platform identifier. The lock file is treated as an opaque
// byte sequence.
func EnvKey(lockfile []byte, platform string) string {
	h := sha256.New()
	h.Write(lockfile)
	h.Write([]byte{0})
	h.Write([]byte(platform))
	return hex.EncodeToString(h.Sum(nil))
}
