// Package filter narrows the cached records client-side. It never changes
// what the store holds.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"

	"trackdash/internal/model"
)

type Criteria struct {
	Query string // plain contains, or a regex when written as /.../
	Field string // when set, Query only looks at this field
	Expr  string // govaluate expression over model.TrackRecord.Fields
}

func (c Criteria) Empty() bool {
	return strings.TrimSpace(c.Query) == "" && strings.TrimSpace(c.Expr) == ""
}

func (c Criteria) String() string {
	parts := []string{}
	if c.Query != "" {
		q := c.Query
		if c.Field != "" {
			q = c.Field + ":" + q
		}
		parts = append(parts, q)
	}
	if c.Expr != "" {
		parts = append(parts, "expr("+c.Expr+")")
	}
	return strings.Join(parts, " ")
}

type Evaluator struct {
	c    Criteria
	re   *regexp.Regexp
	expr *govaluate.EvaluableExpression
}

func NewEvaluator(c Criteria) (*Evaluator, error) {
	e := &Evaluator{c: c}
	q := strings.TrimSpace(c.Query)
	if len(q) > 2 && strings.HasPrefix(q, "/") && strings.HasSuffix(q, "/") {
		re, err := regexp.Compile(q[1 : len(q)-1])
		if err != nil {
			return nil, fmt.Errorf("filter regex: %w", err)
		}
		e.re = re
	}
	if strings.TrimSpace(c.Expr) != "" {
		expr, err := govaluate.NewEvaluableExpression(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("filter expression: %w", err)
		}
		e.expr = expr
	}
	return e, nil
}

func (e *Evaluator) Match(r model.TrackRecord) bool {
	fields := r.Fields()
	if q := strings.TrimSpace(e.c.Query); q != "" {
		var texts []string
		if e.c.Field != "" {
			if v, ok := fields[e.c.Field]; ok {
				texts = []string{fmt.Sprint(v)}
			}
		} else {
			texts = []string{r.TrackID, r.Label, r.Recipient, r.Subject, r.City, r.Country,
				r.Browser, r.OS, r.DeviceType, r.IPAddress, r.CampaignID}
		}
		if !e.matchText(q, texts) {
			return false
		}
	}
	if e.expr != nil {
		result, err := e.expr.Evaluate(fields)
		if err != nil {
			return false
		}
		b, ok := result.(bool)
		if !ok || !b {
			return false
		}
	}
	return true
}

func (e *Evaluator) matchText(q string, texts []string) bool {
	lq := strings.ToLower(q)
	for _, t := range texts {
		if e.re != nil {
			if e.re.MatchString(t) {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(t), lq) {
			return true
		}
	}
	return false
}

// Apply returns the records matching e, preserving order. A nil evaluator
// matches everything.
func (e *Evaluator) Apply(records []model.TrackRecord) []model.TrackRecord {
	if e == nil {
		return records
	}
	out := make([]model.TrackRecord, 0, len(records))
	for _, r := range records {
		if e.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
