// Package bridge connects the recorder to the host platform's export feed.
// The platform pushes state frames over a websocket; the bridge applies
// them onto an in-memory snapshot and drives one engine pass per update
// frame, all on a single goroutine, preserving the platform's callback
// threading model.
package bridge

import (
	"encoding/json"
	"fmt"

	"chart-recorder/internal/platform"
)

// Frame kinds on the feed.
const (
	FrameSymbol = "symbol"
	FrameBar    = "bar"
	FrameStudy  = "study"
	FrameDepth  = "depth"
	FrameTape   = "tape"
	FrameVAP    = "vap"
	FrameUpdate = "update"
)

// Frame is one envelope on the export feed. Data holds the kind-specific
// payload; update frames carry none.
type Frame struct {
	Kind  string          `json:"kind"`
	Chart int             `json:"chart"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SymbolFrame sets the chart's instrument symbol.
type SymbolFrame struct {
	Symbol string `json:"sym"`
}

// BarFrame carries one bar, keyed by index so in-progress bars overwrite
// in place.
type BarFrame struct {
	Index     int     `json:"i"`
	Time      float64 `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	BidVolume float64 `json:"bidvol"`
	AskVolume float64 `json:"askvol"`
	NewDay    bool    `json:"new_day,omitempty"`
}

// StudyFrame replaces one subgraph array of a study.
type StudyFrame struct {
	StudyID  int       `json:"study"`
	Name     string    `json:"name,omitempty"`
	Subgraph int       `json:"sg"`
	Values   []float64 `json:"values"`
}

// DepthLevelFrame is one depth level in a DepthFrame.
type DepthLevelFrame struct {
	Price float64 `json:"price"`
	Size  int     `json:"size"`
}

// DepthFrame replaces the book and the level-1 quote.
type DepthFrame struct {
	Bids    []DepthLevelFrame `json:"bids"`
	Asks    []DepthLevelFrame `json:"asks"`
	Bid     float64           `json:"bid"`
	Ask     float64           `json:"ask"`
	BidSize int               `json:"bq"`
	AskSize int               `json:"aq"`
}

// TapeEntryFrame is one time-and-sales entry in a TapeFrame. Kind matches
// platform.TapeKind.
type TapeEntryFrame struct {
	Seq     uint64  `json:"seq,omitempty"`
	Time    float64 `json:"t"`
	Kind    int     `json:"kind"`
	Price   float64 `json:"px,omitempty"`
	Volume  float64 `json:"qty,omitempty"`
	Bid     float64 `json:"bid,omitempty"`
	Ask     float64 `json:"ask,omitempty"`
	BidSize int     `json:"bq,omitempty"`
	AskSize int     `json:"aq,omitempty"`
}

// TapeFrame appends time-and-sales entries.
type TapeFrame struct {
	Entries []TapeEntryFrame `json:"entries"`
}

// VAPFrame replaces the volume-at-price elements for one bar.
type VAPFrame struct {
	Bar      int `json:"bar"`
	Elements []struct {
		Price  float64 `json:"price"`
		Volume float64 `json:"volume"`
	} `json:"elements"`
}

// Apply decodes a frame's payload and applies it to the snapshot. Update
// frames are the caller's concern; Apply reports whether the frame was an
// update frame.
func Apply(snap *platform.Snapshot, f Frame) (update bool, err error) {
	switch f.Kind {
	case FrameUpdate:
		return true, nil

	case FrameSymbol:
		var p SymbolFrame
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return false, fmt.Errorf("decode symbol frame: %w", err)
		}
		snap.SetSymbol(f.Chart, p.Symbol)

	case FrameBar:
		var p BarFrame
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return false, fmt.Errorf("decode bar frame: %w", err)
		}
		bar := platform.BarData{
			Time:      p.Time,
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
			BidVolume: p.BidVolume,
			AskVolume: p.AskVolume,
		}
		if p.Index >= snap.BarCount(f.Chart) {
			for snap.BarCount(f.Chart) < p.Index {
				snap.AppendBar(f.Chart, platform.BarData{}, false)
			}
			snap.AppendBar(f.Chart, bar, p.NewDay)
		} else {
			snap.SetBar(f.Chart, p.Index, bar)
		}

	case FrameStudy:
		var p StudyFrame
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return false, fmt.Errorf("decode study frame: %w", err)
		}
		snap.SetStudy(f.Chart, platform.StudyRef{ID: p.StudyID, Name: p.Name}, p.Subgraph, p.Values)

	case FrameDepth:
		var p DepthFrame
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return false, fmt.Errorf("decode depth frame: %w", err)
		}
		snap.SetDepth(f.Chart, depthLevels(p.Bids), depthLevels(p.Asks))
		if p.Bid > 0 || p.Ask > 0 {
			snap.SetTopOfBook(f.Chart, p.Bid, p.Ask, p.BidSize, p.AskSize)
		}

	case FrameTape:
		var p TapeFrame
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return false, fmt.Errorf("decode tape frame: %w", err)
		}
		for _, en := range p.Entries {
			snap.AppendTape(f.Chart, platform.TapeEntry{
				Seq:     en.Seq,
				Time:    en.Time,
				Kind:    platform.TapeKind(en.Kind),
				Price:   en.Price,
				Volume:  en.Volume,
				Bid:     en.Bid,
				Ask:     en.Ask,
				BidSize: en.BidSize,
				AskSize: en.AskSize,
			})
		}

	case FrameVAP:
		var p VAPFrame
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return false, fmt.Errorf("decode vap frame: %w", err)
		}
		elems := make([]platform.VAPElement, 0, len(p.Elements))
		for _, el := range p.Elements {
			elems = append(elems, platform.VAPElement{Price: el.Price, Volume: el.Volume})
		}
		snap.SetVAP(f.Chart, p.Bar, elems)

	default:
		return false, fmt.Errorf("unknown frame kind %q", f.Kind)
	}
	return false, nil
}

func depthLevels(frames []DepthLevelFrame) []platform.DepthLevel {
	out := make([]platform.DepthLevel, 0, len(frames))
	for _, l := range frames {
		out = append(out, platform.DepthLevel{Price: l.Price, Size: l.Size})
	}
	return out
}
