package cart

import (
	"encoding/json"

	"Storefront/internal/catalog"
)

// Decode turns a persisted cart into line items. Anything that is not a JSON
// array decodes to an empty cart; entries that are not valid line items are
// dropped and repeated ids are merged the same way Add merges them.
func Decode(raw []byte) []LineItem {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []LineItem{}
	}

	out := make([]LineItem, 0, len(elems))
	for _, e := range elems {
		var it LineItem
		if err := json.Unmarshal(e, &it); err != nil || !it.valid() {
			continue
		}
		it.Type = catalog.ParseProductType(string(it.Type))
		if i := indexOf(out, it.ID); i >= 0 {
			out[i].Quantity += it.Quantity
			continue
		}
		out = append(out, it)
	}
	return out
}

func Encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}
