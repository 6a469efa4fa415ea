package model

import "time"

// Direction is the side of an order or signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// OrderAnnotation is a display-only order line supplied by the order
// collaborator. StopLoss and TakeProfit are optional.
type OrderAnnotation struct {
	ID         string    `json:"id"`
	Direction  Direction `json:"direction"`
	OpenPrice  float64   `json:"open_price"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	Label      string    `json:"label,omitempty"`
}

// Signal is a bot marker anchored to a candle. A non-zero Time selects the
// candle containing it; otherwise Index is the series index at the time the
// signal is stored, and the session pins it to that candle's OpenTime so a
// later trim or reload does not move it. Price is the marker's vertical
// anchor; zero places it at the candle's low (buy) or high (sell).
type Signal struct {
	ID         string    `json:"id"`
	Index      int       `json:"index"`
	Time       time.Time `json:"time"`
	Direction  Direction `json:"direction"`
	Price      float64   `json:"price"`
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}
