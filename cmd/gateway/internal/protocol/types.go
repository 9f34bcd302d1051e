package protocol

import "encoding/json"

const (
	// TypePrices is the event name pushed to websocket clients whenever
	// the live record set changes, and on connect for the initial snapshot.
	TypePrices = "gold-prices-updated"
)

type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func PricesMessage(data []byte) ([]byte, error) {
	return json.Marshal(WSMessage{Type: TypePrices, Data: data})
}
