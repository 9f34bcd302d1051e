package feeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goldwatch/goldwatch/pkg/models"
)

// The vendor never returns more than a handful of instruments; anything
// past row 7 is promotional noise.
const maxVendorRows = 7

// ErrNoData means the vendor response parsed but contained no usable rows.
var ErrNoData = errors.New("no gold price data in vendor response")

// APIFetcher pulls prices from the vendor HTTP API. The payload is a
// DataList.Data array whose field names embed the row number:
//
//	{"@row": "3", "@n_3": "...", "@k_3": "24k", "@pb_3": "11640000", ...}
type APIFetcher struct {
	client *http.Client
	url    string
}

func NewAPIFetcher(url string) *APIFetcher {
	return &APIFetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

type vendorPayload struct {
	DataList struct {
		Data []map[string]any `json:"Data"`
	} `json:"DataList"`
}

func (f *APIFetcher) Fetch(ctx context.Context) (models.RecordSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create vendor request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	var payload vendorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode vendor response: %w", err)
	}

	return parseVendorRows(payload.DataList.Data)
}

// parseVendorRows maps vendor rows onto price records, keying row n as
// "gold_n". Rows without a usable row number are skipped.
func parseVendorRows(rows []map[string]any) (models.RecordSet, error) {
	if len(rows) > maxVendorRows {
		rows = rows[:maxVendorRows]
	}

	set := models.RecordSet{}
	for _, item := range rows {
		row := asString(item["@row"])
		if row == "" {
			continue
		}

		rec := models.PriceRecord{
			Type:      "gold_" + row,
			Name:      asString(item["@n_"+row]),
			Karat:     asString(item["@k_"+row]),
			Purity:    asString(item["@h_"+row]),
			BuyPrice:  asAmount(item["@pb_"+row]),
			UpdatedAt: asString(item["@d_"+row]),
		}
		if sell := asAmount(item["@ps_"+row]); sell > 0 {
			rec.SellPrice = models.Sell(sell)
		}
		set = append(set, rec)
	}

	if len(set) == 0 {
		return nil, ErrNoData
	}
	return set, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asAmount(v any) int64 {
	switch n := v.(type) {
	case string:
		amount, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return amount
	case float64:
		return int64(n)
	default:
		return 0
	}
}
