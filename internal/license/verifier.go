package license

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// personalMessagePrefix is the EIP-191 version 0x45 prefix wallets prepend
// before hashing a message for personal_sign.
const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// PersonalMessageHash returns keccak256(prefix || len(message) || message)
func PersonalMessageHash(message []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalMessagePrefix))
	h.Write([]byte(strconv.Itoa(len(message))))
	h.Write(message)
	return h.Sum(nil)
}

// Verifier recovers personal_sign signers. It holds no state and is safe for
// concurrent use.
type Verifier struct{}

// NewVerifier creates a Verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Recover returns the address that produced signature over message.
// signature is the 65-byte R||S||V value, hex encoded with optional 0x prefix;
// V may be 0/1 or 27/28.
func (v *Verifier) Recover(message, signature string) (common.Address, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(PersonalMessageHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether signature over message was produced by claimedAddress.
// Addresses are compared case-insensitively; any malformed input yields false.
func (v *Verifier) Verify(message, signature, claimedAddress string) bool {
	recovered, err := v.Recover(message, signature)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered.Hex(), strings.TrimSpace(claimedAddress))
}

func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	recoveryID := sig[crypto.RecoveryIDOffset]
	if recoveryID >= 27 {
		recoveryID -= 27
	}
	if recoveryID > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[crypto.RecoveryIDOffset])
	}
	sig[crypto.RecoveryIDOffset] = recoveryID

	return sig, nil
}
