package usecase

import (
	"encoding/json"
	"fmt"

	"SignalDeck/internal/domain/models"
)

// Source names one upstream signal producer and its payload parser. Topic
// bindings live in configuration; the parser is fixed per producer.
type Source struct {
	Name  string
	Parse ParseFunc
}

// Sources lists the shipped producer adapters.
func Sources() []Source {
	return []Source{
		{Name: "fudkii", Parse: ParseFudkii},
		{Name: "fukaa", Parse: ParseFukaa},
		{Name: "mere", Parse: ParseMere},
		{Name: "microalpha", Parse: ParseMicroAlpha},
		{Name: "pivot", Parse: ParsePivot},
	}
}

// ParserFor returns the parser registered under name.
func ParserFor(name string) (ParseFunc, bool) {
	for _, s := range Sources() {
		if s.Name == name {
			return s.Parse, true
		}
	}
	return nil, false
}

// ParseFudkii handles the FUDKII screener payload.
// Schema: {stock, triggered, direction, triggerTime, emitTime, price,
// entryPrice, stopLoss, target, score}
func ParseFudkii(b []byte) (*models.SignalEvent, error) {
	var m struct {
		Stock       string  `json:"stock"`
		Triggered   bool    `json:"triggered"`
		Direction   string  `json:"direction"`
		TriggerTime int64   `json:"triggerTime"`
		EmitTime    int64   `json:"emitTime"`
		Price       float64 `json:"price"`
		EntryPrice  float64 `json:"entryPrice"`
		StopLoss    float64 `json:"stopLoss"`
		Target      float64 `json:"target"`
		Score       float64 `json:"score"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("fudkii payload: %w", err)
	}
	return &models.SignalEvent{
		Instrument:  m.Stock,
		Triggered:   m.Triggered,
		Direction:   m.Direction,
		TriggerTime: m.TriggerTime,
		EmitTime:    m.EmitTime,
		Fields: map[string]float64{
			"price":      m.Price,
			"entryPrice": m.EntryPrice,
			"stopLoss":   m.StopLoss,
			"target":     m.Target,
			"score":      m.Score,
		},
	}, nil
}

// ParseFukaa handles the FUKAA momentum payload.
// Schema: {stock, triggered, direction, triggerTime, price, rsi, vwapDist,
// volumeSpike}
func ParseFukaa(b []byte) (*models.SignalEvent, error) {
	var m struct {
		Stock       string  `json:"stock"`
		Triggered   bool    `json:"triggered"`
		Direction   string  `json:"direction"`
		TriggerTime int64   `json:"triggerTime"`
		Price       float64 `json:"price"`
		RSI         float64 `json:"rsi"`
		VWAPDist    float64 `json:"vwapDist"`
		VolumeSpike float64 `json:"volumeSpike"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("fukaa payload: %w", err)
	}
	return &models.SignalEvent{
		Instrument:  m.Stock,
		Triggered:   m.Triggered,
		Direction:   m.Direction,
		TriggerTime: m.TriggerTime,
		Fields: map[string]float64{
			"price":       m.Price,
			"rsi":         m.RSI,
			"vwapDist":    m.VWAPDist,
			"volumeSpike": m.VolumeSpike,
		},
	}, nil
}

// ParseMere handles the MERE mean-reversion payload. The producer labels
// direction as "bias" and keys the instrument as "symbol".
func ParseMere(b []byte) (*models.SignalEvent, error) {
	var m struct {
		Symbol      string  `json:"symbol"`
		Triggered   bool    `json:"triggered"`
		Bias        string  `json:"bias"`
		TriggerTime int64   `json:"triggerTime"`
		Price       float64 `json:"price"`
		ZScore      float64 `json:"zScore"`
		MeanPrice   float64 `json:"meanPrice"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("mere payload: %w", err)
	}
	return &models.SignalEvent{
		Instrument:  m.Symbol,
		Triggered:   m.Triggered,
		Direction:   m.Bias,
		TriggerTime: m.TriggerTime,
		Fields: map[string]float64{
			"price":     m.Price,
			"zScore":    m.ZScore,
			"meanPrice": m.MeanPrice,
		},
	}, nil
}

// ParseMicroAlpha handles the MicroAlpha payload. "active" doubles as the
// trigger flag; "ts" is the producer event time.
func ParseMicroAlpha(b []byte) (*models.SignalEvent, error) {
	var m struct {
		Ticker     string  `json:"ticker"`
		Active     bool    `json:"active"`
		SignalType string  `json:"signalType"`
		TS         int64   `json:"ts"`
		AlphaScore float64 `json:"alphaScore"`
		Confidence float64 `json:"confidence"`
		Price      float64 `json:"price"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("microalpha payload: %w", err)
	}
	return &models.SignalEvent{
		Instrument:  m.Ticker,
		Triggered:   m.Active,
		Direction:   m.SignalType,
		TriggerTime: m.TS,
		Fields: map[string]float64{
			"alphaScore": m.AlphaScore,
			"confidence": m.Confidence,
			"price":      m.Price,
		},
	}, nil
}

// ParsePivot handles the pivot-confluence payload. When the producer omits
// stop-loss/target levels the adapter derives them from the Bollinger band
// and SuperTrend values it always carries.
func ParsePivot(b []byte) (*models.SignalEvent, error) {
	var m struct {
		Stock       string  `json:"stock"`
		Triggered   bool    `json:"triggered"`
		Direction   string  `json:"direction"`
		TriggerTime int64   `json:"triggerTime"`
		Price       float64 `json:"price"`
		Pivot       float64 `json:"pivot"`
		R1          float64 `json:"r1"`
		S1          float64 `json:"s1"`
		StopLoss    float64 `json:"stopLoss"`
		Target      float64 `json:"target"`
		BollLower   float64 `json:"bollLower"`
		BollUpper   float64 `json:"bollUpper"`
		SuperTrend  float64 `json:"superTrend"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("pivot payload: %w", err)
	}

	stopLoss, target := m.StopLoss, m.Target
	// Upstream sends 0 when it skipped the pivot-derived levels. A stop that
	// was legitimately computed as 0 is indistinguishable here; upstream has
	// been asked to send the levels as explicit nulls instead.
	if stopLoss == 0 {
		switch m.Direction {
		case "SHORT":
			stopLoss = m.SuperTrend
			if stopLoss == 0 {
				stopLoss = m.BollUpper
			}
			target = m.Price - 2*(stopLoss-m.Price)
		default:
			stopLoss = m.SuperTrend
			if stopLoss == 0 {
				stopLoss = m.BollLower
			}
			target = m.Price + 2*(m.Price-stopLoss)
		}
	}

	return &models.SignalEvent{
		Instrument:  m.Stock,
		Triggered:   m.Triggered,
		Direction:   m.Direction,
		TriggerTime: m.TriggerTime,
		Fields: map[string]float64{
			"price":      m.Price,
			"pivot":      m.Pivot,
			"r1":         m.R1,
			"s1":         m.S1,
			"stopLoss":   stopLoss,
			"target":     target,
			"bollLower":  m.BollLower,
			"bollUpper":  m.BollUpper,
			"superTrend": m.SuperTrend,
		},
	}, nil
}
