package recovery

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/dan/utxo-wallet-core/krs"
)

// KRSProviderConfig is one provider's published recovery terms: where
// its cut gets paid, and what it charges (spec §4.8 "provider in
// directory"). The provider directory itself is an external
// collaborator concern (spec §1); this core only consumes one provider
// record at a time, however that directory happens to serialize it.
type KRSProviderConfig struct {
	ProviderID string
	FeeAddress string
	FeeSpec    krs.FeeSpec
}

// DecodeKRSProviderConfig converts one directory entry, still in its
// raw map shape (e.g. decoded from the directory's own JSON response),
// into a KRSProviderConfig. Nested fee_spec fields decode into the
// embedded krs.FeeSpec the same pass.
func DecodeKRSProviderConfig(raw map[string]interface{}) (KRSProviderConfig, error) {
	var cfg KRSProviderConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return KRSProviderConfig{}, fmt.Errorf("recovery: building KRS provider decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return KRSProviderConfig{}, fmt.Errorf("recovery: decoding KRS provider config: %w", err)
	}
	return cfg, nil
}
