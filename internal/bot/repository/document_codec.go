package repository

import (
	"github.com/fxamacker/cbor/v2"
)

// The sqlite backend stores the document body as deterministic CBOR so
// identical documents always produce identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("repository: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("repository: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeDocumentBody(s documentSchema) ([]byte, error) {
	return encMode.Marshal(s)
}

// decodeDocumentBody decodes body and returns the set of top-level keys
// present in it, so missing collections can be repaired.
func decodeDocumentBody(body []byte) (documentSchema, map[string]bool, error) {
	var s documentSchema
	var top map[string]cbor.RawMessage
	if err := decMode.Unmarshal(body, &top); err != nil {
		return s, nil, err
	}
	if err := decMode.Unmarshal(body, &s); err != nil {
		return s, nil, err
	}
	keys := make(map[string]bool, len(top))
	for k := range top {
		keys[k] = true
	}
	return s, keys, nil
}
