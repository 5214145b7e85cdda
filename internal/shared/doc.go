// Package shared holds code used across nftgate packages that belongs to no
// single domain.
//
// The testutil subpackage provides:
//
//	- Wallet: throwaway secp256k1 keys that sign personal_sign messages
//	- CaptureHandler: an in-memory slog.Handler for asserting on log output
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    wallet := testutil.NewWallet(t)
//	    sig := wallet.SignPersonal(t, challenge.Message)
//	    // ...
//	}
package shared
