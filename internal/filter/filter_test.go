package filter

import (
	"testing"

	"trackdash/internal/model"
)

func records() []model.TrackRecord {
	return []model.TrackRecord{
		{TrackID: "client-1", Label: "Spring launch", Country: "US", OpenCount: 5, ClickCount: 1, DeviceType: "Mobile"},
		{TrackID: "client-2", Label: "Newsletter", Country: "FR", OpenCount: 1},
		{TrackID: "promo-3", Country: "US", OpenCount: 3, IsBot: true},
	}
}

func ids(rs []model.TrackRecord) []string {
	out := []string{}
	for _, r := range rs {
		out = append(out, r.TrackID)
	}
	return out
}

func TestQueryAndExpr(t *testing.T) {
	cases := []struct {
		c    Criteria
		want []string
	}{
		{Criteria{}, []string{"client-1", "client-2", "promo-3"}},
		{Criteria{Query: "LAUNCH"}, []string{"client-1"}},
		{Criteria{Query: "/^client-\\d$/"}, []string{"client-1", "client-2"}},
		{Criteria{Query: "us", Field: "country"}, []string{"client-1", "promo-3"}},
		{Criteria{Expr: `open_count > 2 && country == "US"`}, []string{"client-1", "promo-3"}},
		{Criteria{Expr: `is_bot == false`, Query: "client"}, []string{"client-1", "client-2"}},
		{Criteria{Expr: `click_count >= 1 || label == "Newsletter"`}, []string{"client-1", "client-2"}},
	}
	for i, tc := range cases {
		ev, err := NewEvaluator(tc.c)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		got := ids(ev.Apply(records()))
		if len(got) != len(tc.want) {
			t.Fatalf("case %d (%s): got %v want %v", i, tc.c, got, tc.want)
		}
		for j := range got {
			if got[j] != tc.want[j] {
				t.Fatalf("case %d (%s): got %v want %v", i, tc.c, got, tc.want)
			}
		}
	}
}

func TestBadInput(t *testing.T) {
	if _, err := NewEvaluator(Criteria{Expr: "open_count >"}); err == nil {
		t.Fatalf("expected expression error")
	}
	if _, err := NewEvaluator(Criteria{Query: "/([/"}); err == nil {
		t.Fatalf("expected regex error")
	}
	ev, _ := NewEvaluator(Criteria{Expr: "missing_field > 1"})
	if len(ev.Apply(records())) != 0 {
		t.Fatalf("evaluation errors should not match")
	}
	var nilEv *Evaluator
	if len(nilEv.Apply(records())) != 3 {
		t.Fatalf("nil evaluator keeps everything")
	}
}
