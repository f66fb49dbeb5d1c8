package chain

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Artifact is the deployment artifact written by the contract deploy script.
type Artifact struct {
	Address string `json:"address"`
	Admin   string `json:"admin"`
}

// LoadArtifact reads contract-address.json from path.
func LoadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract artifact %s: %w", path, err)
	}
	var art Artifact
	if err := json.Unmarshal(b, &art); err != nil {
		return nil, fmt.Errorf("parse contract artifact %s: %w", path, err)
	}
	if art.Address == "" || art.Admin == "" {
		return nil, fmt.Errorf("contract artifact %s missing address or admin", path)
	}
	return &art, nil
}

// AdminKey finds the private key whose derived address matches the artifact's
// admin address. Keys are hex-encoded, with or without the 0x prefix.
func AdminKey(keys []string, admin string) (*ecdsa.PrivateKey, error) {
	for _, k := range keys {
		priv, err := crypto.HexToECDSA(strings.TrimPrefix(k, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		addr := crypto.PubkeyToAddress(priv.PublicKey)
		if strings.EqualFold(addr.Hex(), admin) {
			return priv, nil
		}
	}
	return nil, fmt.Errorf("no private key matches admin address %s", admin)
}
