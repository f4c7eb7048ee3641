package config

// deploymentSchema closes CUE deployment files over the fields Deployment
// knows about. Field names match the json tags.
const deploymentSchema = `
#Address: =~"^0x[0-9a-fA-F]{40}$"

#Deployment: {
	network:  string & !=""
	rpc_url?: string

	deployer:        #Address
	governance:      #Address
	proxy_admin:     #Address
	l1_token:        #Address
	l1_bridge_proxy: #Address

	token: {
		name:     string & !=""
		symbol:   string & !=""
		currency: string & !=""
		decimals: int & >=0 & <=18
	}

	roles?: {
		pauser?:         #Address
		blacklister?:    #Address
		owner?:          #Address
		lost_and_found?: #Address
	}

	blacklist_migration?: [...#Address]
	minter_allowance?:    string & =~"^[0-9]+$"
	deploy_bridge_proxy?: bool

	overrides?: [string]: #Address

	artifacts?: {
		dir?:          string
		project_root?: string
		profile?:      string
		cache_size?:   int & >=0
	}

	store?: {
		path?: string
	}
}
`
