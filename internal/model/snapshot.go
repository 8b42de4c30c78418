package model

import "time"

type PriceSnapshot struct {
	AssetName string    `json:"assetName" db:"asset_name"`
	Timestamp time.Time `json:"date" db:"ts"`
	Price     float64   `json:"price" db:"price"`
}
