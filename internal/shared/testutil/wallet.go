package testutil

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is a throwaway secp256k1 key used to sign licensing challenges in tests
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewWallet generates a fresh wallet
func NewWallet(t testing.TB) *Wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return &Wallet{
		Key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// SignPersonal signs message the way wallets implement personal_sign and
// returns the 0x-prefixed 65-byte signature with V in {27, 28}.
func (w *Wallet) SignPersonal(t testing.TB, message string) string {
	t.Helper()
	return hexutil.Encode(w.SignPersonalRaw(t, message))
}

// SignPersonalRaw returns the raw signature bytes with V in {27, 28}
func (w *Wallet) SignPersonalRaw(t testing.TB, message string) []byte {
	t.Helper()

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.Key)
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig
}

// Hex returns the EIP-55 checksummed address
func (w *Wallet) Hex() string {
	return w.Address.Hex()
}

// LowerHex returns the address in all lowercase
func (w *Wallet) LowerHex() string {
	return strings.ToLower(w.Address.Hex())
}

// UpperHex returns the address with an upper-cased body and a lowercase 0x prefix
func (w *Wallet) UpperHex() string {
	return "0x" + strings.ToUpper(w.Address.Hex()[2:])
}
