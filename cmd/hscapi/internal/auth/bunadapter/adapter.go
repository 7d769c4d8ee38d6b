// Package bunadapter persists casbin policy in a bun table.
//
// Derived from github.com/msales/casbin-bun-adapter (v1.0.7): no schema
// qualifier, no surrogate id, and only the three value columns the
// access model uses. Bulk writes go through repository transactions that
// share the CasbinRule model, so the adapter itself only needs the
// persist.Adapter surface.
package bunadapter

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"
)

// Policy types stored in the ptype column.
const (
	PtypePolicy   = "p"
	PtypeGrouping = "g"
)

// CasbinRule is one policy line. The composite primary key makes inserts
// of an existing line a no-op under ON CONFLICT DO NOTHING.
type CasbinRule struct {
	bun.BaseModel `bun:"table:casbin_rules,alias:cr"`

	Ptype string `bun:"ptype,pk,type:varchar(16),notnull"`
	V0    string `bun:"v0,pk,type:varchar(255),notnull"` // subject: role:<GROUP> or user:<id>
	V1    string `bun:"v1,pk,type:varchar(255),notnull"` // resource type, or role:<GROUP> for groupings
	V2    string `bun:"v2,pk,type:varchar(255),notnull"` // action; empty for groupings
}

// Policy builds a "p, sub, obj, act" line.
func Policy(sub, obj, act string) *CasbinRule {
	return &CasbinRule{Ptype: PtypePolicy, V0: sub, V1: obj, V2: act}
}

// Grouping builds a "g, member, group" line.
func Grouping(member, group string) *CasbinRule {
	return &CasbinRule{Ptype: PtypeGrouping, V0: member, V1: group}
}

func newCasbinRule(ptype string, rule []string) *CasbinRule {
	line := &CasbinRule{Ptype: ptype}
	if len(rule) > 0 {
		line.V0 = rule[0]
	}
	if len(rule) > 1 {
		line.V1 = rule[1]
	}
	if len(rule) > 2 {
		line.V2 = rule[2]
	}
	return line
}

// Values returns the non-empty tail-trimmed value list.
func (r *CasbinRule) Values() []string {
	values := []string{r.V0, r.V1, r.V2}
	for len(values) > 0 && values[len(values)-1] == "" {
		values = values[:len(values)-1]
	}
	return values
}

func (r *CasbinRule) whereLine(q *bun.DeleteQuery) *bun.DeleteQuery {
	q = q.Where("ptype = ?", r.Ptype)
	for i, v := range []string{r.V0, r.V1, r.V2} {
		if v != "" {
			q = q.Where("? = ?", bun.Ident(fmt.Sprintf("v%d", i)), v)
		}
	}
	return q
}

// Adapter is a casbin persist.Adapter over *bun.DB.
type Adapter struct {
	db bun.IDB
}

// NewAdapter shares the caller's connection pool. The casbin_rules table
// is created by migrations.
func NewAdapter(db bun.IDB) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("bunadapter: nil database")
	}
	return &Adapter{db: db}, nil
}

// LoadPolicy loads every rule into the model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*CasbinRule
	if err := a.db.NewSelect().Model(&rules).Scan(context.Background()); err != nil {
		return fmt.Errorf("failed to load policy from adapter db: %w", err)
	}

	for _, r := range rules {
		values := r.Values()
		if len(values) == 0 {
			continue
		}
		if err := m.AddPolicy(r.Ptype, r.Ptype, values); err != nil {
			return fmt.Errorf("load policy line %s: %w", r.Ptype, err)
		}
	}
	return nil
}

// SavePolicy replaces the table contents with the model's rules.
func (a *Adapter) SavePolicy(m model.Model) error {
	var lines []*CasbinRule
	for _, sec := range []string{PtypePolicy, PtypeGrouping} {
		for ptype, assertion := range m[sec] {
			for _, rule := range assertion.Policy {
				lines = append(lines, newCasbinRule(ptype, rule))
			}
		}
	}

	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*CasbinRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear casbin rules: %w", err)
		}
		for _, line := range lines {
			if _, err := tx.NewInsert().Model(line).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("insert casbin rule: %w", err)
			}
		}
		return nil
	})
}

// AddPolicy inserts one rule.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	_, err := a.db.NewInsert().Model(newCasbinRule(ptype, rule)).On("CONFLICT DO NOTHING").Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to add adapter policy rule: %w", err)
	}
	return nil
}

// RemovePolicy deletes one rule.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	line := newCasbinRule(ptype, rule)
	if _, err := line.whereLine(a.db.NewDelete().Model((*CasbinRule)(nil))).Exec(context.Background()); err != nil {
		return fmt.Errorf("failed to remove adapter policy rule: %w", err)
	}
	return nil
}

// RemoveFilteredPolicy deletes rules whose fields, starting at fieldIndex,
// match the non-empty fieldValues.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	if fieldIndex < 0 || fieldIndex+len(fieldValues) > 3 {
		return fmt.Errorf("filter out of range: index %d with %d values", fieldIndex, len(fieldValues))
	}
	query := a.db.NewDelete().Model((*CasbinRule)(nil)).Where("ptype = ?", ptype)
	for i, v := range fieldValues {
		if v == "" {
			continue
		}
		query = query.Where("? = ?", bun.Ident(fmt.Sprintf("v%d", fieldIndex+i)), v)
	}
	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("failed to remove filtered adapter policy: %w", err)
	}
	return nil
}
