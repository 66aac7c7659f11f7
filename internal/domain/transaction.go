package domain

import (
	"errors"
	"time"
)

// ErrInvalidInput is returned for operator input the system refuses, such as a
// non-positive restock quantity. It maps to a 400 at the HTTP boundary.
var ErrInvalidInput = errors.New("invalid input")

// Transaction is one synthetic sale in canonical form. The data access layer
// guarantees every field is populated before a Transaction reaches analytics.
type Transaction struct {
	TransactionID int64     `json:"TransactionID"`
	Timestamp     time.Time `json:"Timestamp"`
	ProductID     string    `json:"ProductID"`
	Quantity      int64     `json:"Quantity"`
	PricePerUnit  float64   `json:"PricePerUnit"`
	CostPerUnit   float64   `json:"CostPerUnit"`
	TotalPrice    float64   `json:"TotalPrice"`
	TotalCost     float64   `json:"TotalCost"`
	Region        string    `json:"Region"`
	Channel       string    `json:"Channel"`
}

// RestockEntry is one append-only addition of stock for a product.
type RestockEntry struct {
	ProductID string    `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineStatus is the singleton generator on/off flag.
type PipelineStatus struct {
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stock status labels shown on the inventory screen.
const (
	StatusInStock    = "In Stock"
	StatusLowStock   = "Low Stock"
	StatusOutOfStock = "Out of Stock"
)

// InventoryRow is the reconciled stock position of one catalog product.
type InventoryRow struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Sold         int64  `json:"sold"`
	Added        int64  `json:"added"`
	InitialStock int64  `json:"initial_stock"`
	Remaining    int64  `json:"remaining"`
	Status       string `json:"status"`
}
