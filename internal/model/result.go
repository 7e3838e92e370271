package model

import "encoding/json"

// IndicatorResult holds a computed indicator value for a single observation.
type IndicatorResult struct {
	Name   string  `json:"name"` // e.g. "SMA_20", "EMA_9", "RSI_14", "BB_20"
	Symbol string  `json:"symbol"`
	TS     int64   `json:"ts"`    // observation timestamp that produced this value
	Value  float64 `json:"value"` // middle band for BB
	Upper  float64 `json:"upper,omitempty"`
	Lower  float64 `json:"lower,omitempty"`
	Ready  bool    `json:"ready"` // false during warm-up
	Live   bool    `json:"live,omitempty"`
}

// StreamKey returns the Redis stream key: "ind:{name}:{symbol}".
func (r *IndicatorResult) StreamKey() string {
	return "ind:" + r.Name + ":" + r.Symbol
}

// LatestKey returns the Redis key holding the newest committed value:
// "ind:{name}:latest:{symbol}".
func (r *IndicatorResult) LatestKey() string {
	return "ind:" + r.Name + ":latest:" + r.Symbol
}

// PubSubChannel returns the pubsub channel live subscribers listen on:
// "pub:ind:{name}:{symbol}".
func (r *IndicatorResult) PubSubChannel() string {
	return "pub:ind:" + r.Name + ":" + r.Symbol
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
