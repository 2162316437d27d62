package prebuild

import (
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// DecodeAddressDetail converts one wallet-service address record, still
// in the loosely-typed map shape a JSON API boundary hands back, into an
// AddressDetail (spec §4.3 step 4's coinSpecific). Scripts travel over
// the wire as hex strings, so the decode hook below promotes any
// string->[]byte field through hex.DecodeString rather than relying on
// the caller to have done it already.
func DecodeAddressDetail(raw map[string]interface{}) (AddressDetail, error) {
	var detail AddressDetail

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &detail,
		DecodeHook: hexStringToBytesHook,
	})
	if err != nil {
		return AddressDetail{}, fmt.Errorf("prebuild: building address detail decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return AddressDetail{}, fmt.Errorf("prebuild: decoding address detail: %w", err)
	}
	return detail, nil
}

var byteSliceType = reflect.TypeOf([]byte(nil))

func hexStringToBytesHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != byteSliceType {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return []byte(nil), nil
	}
	return hex.DecodeString(s)
}
