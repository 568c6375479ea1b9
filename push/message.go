package push

import (
	"time"

	"linesign/poller"
)

// ProductionMessage is the JSON structure all publishers emit per update.
type ProductionMessage struct {
	Line          string  `json:"line"`
	Plan          int     `json:"plan"`
	Actual        int     `json:"actual"`
	Remaining     int     `json:"remaining"`
	ProductType   int     `json:"product_type"`
	ProductName   string  `json:"product_name,omitempty"`
	RemainPallets int     `json:"remain_pallets"`
	RemainMinutes float64 `json:"remain_minutes"`
	InOperating   bool    `json:"in_operating"`
	Stale         bool    `json:"stale"`
	CapturedAt    string  `json:"captured_at"`
	PLCTime       string  `json:"plc_time"`
}

// NewProductionMessage builds the wire message for one update.
func NewProductionMessage(line string, update poller.Update) ProductionMessage {
	snap := update.Snapshot
	return ProductionMessage{
		Line:          line,
		Plan:          snap.Plan,
		Actual:        snap.Actual,
		Remaining:     snap.Remaining(),
		ProductType:   snap.ProductType,
		ProductName:   update.Product.Name,
		RemainPallets: update.RemainPallets,
		RemainMinutes: update.RemainMinutes,
		InOperating:   snap.InOperating,
		Stale:         update.Stale,
		CapturedAt:    snap.CapturedAt.UTC().Format(time.RFC3339),
		PLCTime:       snap.PLCTime.UTC().Format(time.RFC3339),
	}
}
