package table

import (
	"fmt"
	"sort"
	"strings"

	"gtnh-items-tracker/internal/rowstore"
	"gtnh-items-tracker/internal/util"
)

// Level is the severity of a Halt.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Halt stops a pipeline run cleanly with a message for the page.
type Halt struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// HaltError wraps a Halt as an error.
type HaltError struct {
	Halt Halt
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("%s: %s", e.Halt.Level, e.Halt.Message)
}

func warn(msg string) error {
	return &HaltError{Halt: Halt{Level: LevelWarning, Message: msg}}
}

const (
	MsgNoItemData    = "No item data found yet."
	MsgNoItemsWindow = "No items found in the selected time window."
	MsgNoChartData   = "No chart data found yet."
	MsgAllInvalid    = "Data exists, but all rows were invalid after cleaning."
)

// RequiredColumns must all be present in the full-row response.
var RequiredColumns = []string{rowstore.ColumnItem, rowstore.ColumnQuantity, rowstore.ColumnDatetime}

// DistinctItems returns the unique non-null item values of the item-only
// response in first-seen order.
func DistinctItems(resp *rowstore.Response) ([]string, error) {
	if resp == nil || len(resp.Data) == 0 || !hasColumn(resp.Data, rowstore.ColumnItem) {
		return nil, warn(MsgNoItemData)
	}

	seen := make(map[string]struct{})
	var items []string
	for _, row := range resp.Data {
		item, ok := itemValue(row)
		if !ok {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, warn(MsgNoItemsWindow)
	}
	return items, nil
}

// Clean validates the full-row response into a Table.
//
// Rows whose datetime or quantity fail to parse, or whose item is null, are
// dropped rather than defaulted.
func Clean(resp *rowstore.Response) (*Table, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, warn(MsgNoChartData)
	}

	if missing := missingColumns(resp.Data); len(missing) > 0 {
		return nil, &HaltError{Halt: Halt{
			Level:   LevelError,
			Message: fmt.Sprintf("Missing required columns: {%s}", strings.Join(missing, ", ")),
		}}
	}

	t := &Table{Records: make([]Record, 0, len(resp.Data))}
	for _, row := range resp.Data {
		rec, ok := cleanRow(row)
		if !ok {
			t.Dropped++
			continue
		}
		t.Records = append(t.Records, rec)
	}

	sort.SliceStable(t.Records, func(i, j int) bool {
		return t.Records[i].Datetime.Before(t.Records[j].Datetime)
	})

	if len(t.Records) == 0 {
		return nil, warn(MsgAllInvalid)
	}
	return t, nil
}

func cleanRow(row rowstore.Row) (Record, bool) {
	item, ok := itemValue(row)
	if !ok {
		return Record{}, false
	}
	qty, ok := util.ToFloat64(row[rowstore.ColumnQuantity])
	if !ok {
		return Record{}, false
	}
	ts, ok := util.ToTime(row[rowstore.ColumnDatetime])
	if !ok {
		return Record{}, false
	}
	return Record{Item: item, Quantity: qty, Datetime: ts}, true
}

func itemValue(row rowstore.Row) (string, bool) {
	v, ok := row[rowstore.ColumnItem]
	if !ok || v == nil {
		return "", false
	}
	return util.ToString(v)
}

// A column exists if any row carries the key.
func hasColumn(rows []rowstore.Row, col string) bool {
	for _, row := range rows {
		if _, ok := row[col]; ok {
			return true
		}
	}
	return false
}

func missingColumns(rows []rowstore.Row) []string {
	var missing []string
	for _, col := range RequiredColumns {
		if !hasColumn(rows, col) {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}
