// Package oracle provides OwnershipOracle implementations that decide whether
// a wallet address holds the licensing token.
//
// Variants:
//
//	- Static: fixed answer, for development and tests
//	- OpenSea: marketplace REST API lookup, paced and de-duplicated
//	- OnChain: ERC-1155 balanceOf or ERC-721 ownerOf over JSON-RPC
//	- Breaker: circuit breaker wrapped around any of the above
//
// FromConfig builds the configured variant.
package oracle
