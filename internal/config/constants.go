package config

import "time"

// Application constants
const (
	AppName     = "nftgate"
	AppVersion  = "1.0.0"
	ServiceName = "nftgate"

	// EnvPrefix namespaces every environment variable, e.g. NFTGATE_SERVER_PORT
	EnvPrefix = "NFTGATE"

	// Oracle kinds
	OracleKindMock    = "mock"
	OracleKindOpenSea = "opensea"
	OracleKindOnChain = "onchain"

	// Token standards understood by the on-chain oracle
	TokenStandardERC1155 = "erc1155"
	TokenStandardERC721  = "erc721"

	DefaultOpenSeaBaseURL = "https://api.opensea.io/api/v1"

	DefaultRequestTTL     = 10 * time.Minute
	DefaultSweepInterval  = time.Minute
	DefaultOracleTimeout  = 15 * time.Second
	DefaultRequestTimeout = 20 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)

// DefaultPreamble is prepended to every challenge nonce and shown to the user
// by their wallet when signing.
const DefaultPreamble = `Please sign this message to verify your ownership of the wallet.
After verifying your ownership, we are able to verify that your wallet contains the necessary license NFT to use this software.
`
