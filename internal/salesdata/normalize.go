package salesdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/dvloznov/sales-analytics/internal/store"
)

// Storage column names. Writes always use these.
const (
	FieldTransactionID = "transaction_id"
	FieldTimestamp     = "timestamp"
	FieldProductID     = "product_id"
	FieldQuantity      = "quantity"
	FieldPricePerUnit  = "price_per_unit"
	FieldCostPerUnit   = "cost_per_unit"
	FieldTotalPrice    = "total_price"
	FieldTotalCost     = "total_cost"
	FieldRegion        = "region"
	FieldChannel       = "channel"

	FieldActive    = "active"
	FieldUpdatedAt = "updated_at"
)

// fieldAliases maps every column spelling seen in stored rows to its
// storage name. Older rows were written with mixed-case names.
var fieldAliases = map[string]string{
	"transaction_id": FieldTransactionID,
	"TransactionID":  FieldTransactionID,
	"transactionid":  FieldTransactionID,

	"timestamp": FieldTimestamp,
	"Timestamp": FieldTimestamp,

	"product_id": FieldProductID,
	"ProductID":  FieldProductID,
	"productid":  FieldProductID,

	"quantity": FieldQuantity,
	"Quantity": FieldQuantity,

	"price_per_unit": FieldPricePerUnit,
	"PricePerUnit":   FieldPricePerUnit,

	"cost_per_unit": FieldCostPerUnit,
	"CostPerUnit":   FieldCostPerUnit,

	"total_price": FieldTotalPrice,
	"TotalPrice":  FieldTotalPrice,

	"total_cost": FieldTotalCost,
	"TotalCost":  FieldTotalCost,

	"region": FieldRegion,
	"Region": FieldRegion,

	"channel": FieldChannel,
	"Channel": FieldChannel,

	"active":     FieldActive,
	"Active":     FieldActive,
	"updated_at": FieldUpdatedAt,
	"UpdatedAt":  FieldUpdatedAt,
}

// legacyNames returns the other spellings of the storage column field,
// sorted so queries are stable.
func legacyNames(field string) []string {
	var names []string
	for alias, name := range fieldAliases {
		if name == field && alias != field {
			names = append(names, alias)
		}
	}
	sort.Strings(names)
	return names
}

var errMissingField = errors.New("missing field")

// canonicalize renames the columns of rec through fieldAliases. When both a
// storage name and an alias are present, the storage name wins. Unknown
// columns and nil values are dropped.
func canonicalize(rec store.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if v == nil {
			continue
		}
		name, ok := fieldAliases[k]
		if !ok {
			continue
		}
		if _, seen := out[name]; seen && k != name {
			continue
		}
		out[name] = v
	}
	return out
}

// Defaults are the polyfill values for absent columns.
type Defaults struct {
	Channel   string
	CostRatio float64
}

// normalizeTransaction turns one stored row into a canonical Transaction.
// polyfilled reports whether any derived or defaulted field had to be filled.
func normalizeTransaction(rec store.Record, d Defaults) (tx domain.Transaction, polyfilled bool, err error) {
	row := canonicalize(rec)

	if v, ok := row[FieldTransactionID]; ok {
		if tx.TransactionID, err = toInt64(v); err != nil {
			return tx, false, fmt.Errorf("%s: %w", FieldTransactionID, err)
		}
	}

	v, ok := row[FieldTimestamp]
	if !ok {
		return tx, false, fmt.Errorf("%s: %w", FieldTimestamp, errMissingField)
	}
	if tx.Timestamp, err = toTime(v); err != nil {
		return tx, false, fmt.Errorf("%s: %w", FieldTimestamp, err)
	}

	tx.ProductID = toString(row[FieldProductID])
	if tx.ProductID == "" {
		return tx, false, fmt.Errorf("%s: %w", FieldProductID, errMissingField)
	}

	v, ok = row[FieldQuantity]
	if !ok {
		return tx, false, fmt.Errorf("%s: %w", FieldQuantity, errMissingField)
	}
	if tx.Quantity, err = toInt64(v); err != nil {
		return tx, false, fmt.Errorf("%s: %w", FieldQuantity, err)
	}
	if tx.Quantity < 1 {
		return tx, false, fmt.Errorf("%s: %d is not positive", FieldQuantity, tx.Quantity)
	}
	qty := float64(tx.Quantity)

	totalPrice, hasTotalPrice, err := optionalFloat(row, FieldTotalPrice)
	if err != nil {
		return tx, false, err
	}
	price, hasPrice, err := optionalFloat(row, FieldPricePerUnit)
	if err != nil {
		return tx, false, err
	}
	switch {
	case hasPrice:
		tx.PricePerUnit = price
	case hasTotalPrice:
		tx.PricePerUnit = totalPrice / qty
		polyfilled = true
	default:
		return tx, false, fmt.Errorf("%s: %w", FieldPricePerUnit, errMissingField)
	}
	if hasTotalPrice {
		tx.TotalPrice = totalPrice
	} else {
		tx.TotalPrice = qty * tx.PricePerUnit
		polyfilled = true
	}

	totalCost, hasTotalCost, err := optionalFloat(row, FieldTotalCost)
	if err != nil {
		return tx, false, err
	}
	cost, hasCost, err := optionalFloat(row, FieldCostPerUnit)
	if err != nil {
		return tx, false, err
	}
	switch {
	case hasTotalCost:
		tx.TotalCost = totalCost
	case hasCost:
		tx.TotalCost = qty * cost
		polyfilled = true
	default:
		tx.TotalCost = d.CostRatio * tx.TotalPrice
		polyfilled = true
	}
	switch {
	case hasCost:
		tx.CostPerUnit = cost
	case hasTotalCost:
		tx.CostPerUnit = totalCost / qty
		polyfilled = true
	default:
		tx.CostPerUnit = d.CostRatio * tx.PricePerUnit
		polyfilled = true
	}

	tx.Region = toString(row[FieldRegion])
	tx.Channel = toString(row[FieldChannel])
	if tx.Channel == "" {
		tx.Channel = d.Channel
		polyfilled = true
	}

	return tx, polyfilled, nil
}

// transactionRecord is the storage form of tx.
func transactionRecord(tx domain.Transaction) store.Record {
	return store.Record{
		FieldTransactionID: tx.TransactionID,
		FieldTimestamp:     tx.Timestamp,
		FieldProductID:     tx.ProductID,
		FieldQuantity:      tx.Quantity,
		FieldPricePerUnit:  tx.PricePerUnit,
		FieldCostPerUnit:   tx.CostPerUnit,
		FieldTotalPrice:    tx.TotalPrice,
		FieldTotalCost:     tx.TotalCost,
		FieldRegion:        tx.Region,
		FieldChannel:       tx.Channel,
	}
}

func normalizeRestock(rec store.Record) (domain.RestockEntry, error) {
	row := canonicalize(rec)
	var e domain.RestockEntry

	e.ProductID = toString(row[FieldProductID])
	if e.ProductID == "" {
		return e, fmt.Errorf("%s: %w", FieldProductID, errMissingField)
	}

	v, ok := row[FieldQuantity]
	if !ok {
		return e, fmt.Errorf("%s: %w", FieldQuantity, errMissingField)
	}
	qty, err := toInt64(v)
	if err != nil {
		return e, fmt.Errorf("%s: %w", FieldQuantity, err)
	}
	if qty <= 0 {
		return e, fmt.Errorf("%s: %d is not positive", FieldQuantity, qty)
	}
	e.Quantity = qty

	if v, ok := row[FieldTimestamp]; ok {
		if e.Timestamp, err = toTime(v); err != nil {
			return e, fmt.Errorf("%s: %w", FieldTimestamp, err)
		}
	}
	return e, nil
}

func restockRecord(e domain.RestockEntry) store.Record {
	return store.Record{
		FieldProductID: e.ProductID,
		FieldQuantity:  e.Quantity,
		FieldTimestamp: e.Timestamp,
	}
}

func normalizeStatus(rec store.Record) (domain.PipelineStatus, error) {
	row := canonicalize(rec)
	var s domain.PipelineStatus

	v, ok := row[FieldActive]
	if !ok {
		return s, fmt.Errorf("%s: %w", FieldActive, errMissingField)
	}
	active, err := toBool(v)
	if err != nil {
		return s, fmt.Errorf("%s: %w", FieldActive, err)
	}
	s.Active = active

	if v, ok := row[FieldUpdatedAt]; ok {
		if s.UpdatedAt, err = toTime(v); err != nil {
			return s, fmt.Errorf("%s: %w", FieldUpdatedAt, err)
		}
	}
	return s, nil
}

func optionalFloat(row map[string]any, field string) (float64, bool, error) {
	v, ok := row[field]
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", field, err)
	}
	return f, true, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}
	return 0, fmt.Errorf("unsupported integer type %T", v)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not finite", f)
	}
	return f, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	case int64:
		return b != 0, nil
	case int:
		return b != 0, nil
	}
	return false, fmt.Errorf("unsupported boolean type %T", v)
}

// naiveLayouts are tried in order for string timestamps. Strings without a
// zone are read as UTC wall-clock time.
var naiveLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case civil.DateTime:
		return t.In(time.UTC), nil
	case civil.Date:
		return t.In(time.UTC), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range naiveLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", t)
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}
