package chain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadKey decrypts the funding key from a JSON keystore file and returns it
// together with its derived address.
func LoadKey(storePath, passphrasePath string) (*ecdsa.PrivateKey, common.Address, error) {
	keyJSON, err := os.ReadFile(storePath)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("read keystore file: %w", err)
	}

	passphrase, err := os.ReadFile(passphrasePath)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("read passphrase file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, strings.TrimSpace(string(passphrase)))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("decrypt keystore: %w", err)
	}

	return key.PrivateKey, crypto.PubkeyToAddress(key.PrivateKey.PublicKey), nil
}

// PubkeyToAddress derives the payout address from a peer's enode public key:
// 128 hex characters, the uncompressed secp256k1 point without the 0x04 prefix.
func PubkeyToAddress(enode string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(enode), "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("decode enode pubkey: %w", err)
	}
	if len(raw) != 64 {
		return common.Address{}, fmt.Errorf("enode pubkey must be 64 bytes, got %d", len(raw))
	}

	pub, err := crypto.UnmarshalPubkey(append([]byte{0x04}, raw...))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse enode pubkey: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
