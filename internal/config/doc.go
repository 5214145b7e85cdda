// Package config provides centralized configuration management for nftgate.
//
// # Configuration Sources
//
// Configuration is resolved in the following order, later sources winning:
//
//	1. Default() values
//	2. A YAML file (NFTGATE_CONFIG_FILE, or nftgate.yaml / configs/nftgate.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern NFTGATE_<SECTION>_<FIELD>:
//
//	NFTGATE_SERVER_PORT=8080
//	NFTGATE_LICENSE_REQUEST_TTL=5m
//	NFTGATE_ORACLE_KIND=opensea
//	NFTGATE_ORACLE_OPENSEA_CONTRACT_ADDRESS=0x495f947276749ce646f68ac8c248420045cb7b5e
//	NFTGATE_ORACLE_OPENSEA_API_KEY=...
//	NFTGATE_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests should start from Default() and adjust the fields they care about.
package config
