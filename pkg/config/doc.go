// Package config loads tokenbridge deployment configuration.
//
// A deployment file is YAML or CUE and decodes into Deployment:
//
//	d, err := config.Load("tokenbridge.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := config.ApplyEnv(d, ".env"); err != nil {
//	    return err
//	}
//	if err := config.Validate(d); err != nil {
//	    return err
//	}
//	settings, err := d.Settings()
//
// CUE files are unified with a closed #Deployment schema, so unknown fields
// and malformed addresses are reported with file positions. YAML files are
// decoded with known-fields checking.
//
// ApplyEnv reads an optional .env file and overlays TOKENBRIDGE_* variables
// (TOKENBRIDGE_GOVERNANCE, TOKENBRIDGE_L1_TOKEN, TOKENBRIDGE_RPC_URL, ...).
//
// Validation and conversion failures are engine config errors carrying a
// "field" detail.
package config
