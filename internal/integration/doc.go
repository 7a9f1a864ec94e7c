// Package integration runs the FundMe suites end to end through the pipeline.
//
// The simulated chain specs always run. The live specs need a reachable
// node and a funded account, and are skipped otherwise, so the package is
// safe to include in CI.
//
// # Running Live Specs
//
// Unit variant against a public testnet:
//
//	RPC_URL=https://sepolia.example/rpc \
//	NETWORK=sepolia \
//	MNEMONIC="..." \
//	go test ./internal/integration/...
//
// Staging variant against an existing deployment:
//
//	RPC_URL=... NETWORK=sepolia PRIVATE_KEY=0x... VARIANT=STAGING \
//	go test ./internal/integration/...
//
// # Environment Variables
//
//   - RPC_URL: RPC endpoint URL; live specs are skipped when unset
//   - NETWORK: network name from the built-in table (default: sepolia)
//   - MNEMONIC: mnemonic for the deployer and funders
//   - PRIVATE_KEY: comma separated keys, deployer first, used when MNEMONIC is unset
//   - VARIANT: UNIT or STAGING (default: UNIT)
//   - DEPLOYMENTS_DIR: deployment records for staging (default: ./deployments)
//   - SEND_VALUE: ETH per fund() call (default: 0.01)
//
// Development networks (hardhat, localhost) are reported as skipped by
// the suite gate rather than run.
package integration
