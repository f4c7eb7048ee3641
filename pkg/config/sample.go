package config

// SampleYAML is the starting config written by `tokenbridge init`.
const SampleYAML = `# tokenbridge deployment config
network: base-sepolia
rpc_url: http://127.0.0.1:8545

# Managed account on the node; every transaction is sent from it.
deployer: "0x0000000000000000000000000000000000000001"

governance: "0x0000000000000000000000000000000000000002"
proxy_admin: "0x0000000000000000000000000000000000000003"

l1_token: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
l1_bridge_proxy: "0x0000000000000000000000000000000000000004"

token:
  name: Bridged USDC
  symbol: USDC.e
  currency: USD
  decimals: 6

# roles:
#   pauser: "0x..."
#   blacklister: "0x..."
#   owner: "0x..."
#   lost_and_found: "0x..."

# blacklist_migration: []
minter_allowance: "115792089237316195423570985008687907853269984665640564039457584007913129639935"
deploy_bridge_proxy: true

# overrides:
#   SignatureChecker: "0x..."

artifacts:
  project_root: .

store:
  path: .tokenbridge/ledger.db
`
