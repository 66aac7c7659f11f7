package bigquery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/sales-analytics/internal/store"
)

// Dataset identifies the dataset the sales tables live in.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// TableName returns the fully qualified, backquoted table name.
func (d Dataset) TableName(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, table)
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !store.ValidIdentifier(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

// recentSQL builds the query behind QueryRecent. The limit is bound as @limit
// when positive.
func recentSQL(d Dataset, q store.Query) (string, error) {
	if err := checkIdentifiers(q.Table); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s", d.TableName(q.Table))
	if q.OrderBy != "" {
		if err := checkIdentifiers(q.OrderBy); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " ORDER BY %s DESC", q.OrderBy)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT @limit")
	}
	return b.String(), nil
}

// mergeSQL builds a MERGE that inserts or replaces the row keyed by @id. Every
// column of rec is bound as a parameter of the same name.
func mergeSQL(d Dataset, table string, rec store.Record) (string, []string, error) {
	if err := checkIdentifiers(table); err != nil {
		return "", nil, err
	}

	cols := make([]string, 0, len(rec))
	for c := range rec {
		if c == store.KeyField {
			continue
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := checkIdentifiers(cols...); err != nil {
		return "", nil, err
	}

	sets := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = @%s", c, c)
		params[i] = "@" + c
	}

	insertCols := append([]string{store.KeyField}, cols...)
	insertVals := append([]string{"@" + store.KeyField}, params...)

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s T\n", d.TableName(table))
	fmt.Fprintf(&b, "USING (SELECT @%s AS %s) S\n", store.KeyField, store.KeyField)
	fmt.Fprintf(&b, "ON T.%s = S.%s\n", store.KeyField, store.KeyField)
	if len(cols) > 0 {
		fmt.Fprintf(&b, "WHEN MATCHED THEN UPDATE SET %s\n", strings.Join(sets, ", "))
	}
	fmt.Fprintf(&b, "WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(insertCols, ", "), strings.Join(insertVals, ", "))

	return b.String(), insertCols, nil
}

// singletonSQL builds the lookup behind LoadSingleton.
func singletonSQL(d Dataset, table string) (string, error) {
	if err := checkIdentifiers(table); err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = @%s LIMIT 1",
		d.TableName(table), store.KeyField, store.KeyField), nil
}
