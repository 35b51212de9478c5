package models

import "testing"

func TestTouchesAny(t *testing.T) {
	ex := &Example{Tables: []string{"orders", "customers"}}

	if !ex.TouchesAny(nil) {
		t.Error("empty filter should match everything")
	}
	if !ex.TouchesAny([]string{"orders"}) {
		t.Error("overlapping table should match")
	}
	if !ex.TouchesAny([]string{"products", "customers"}) {
		t.Error("partial overlap should match")
	}
	if ex.TouchesAny([]string{"products"}) {
		t.Error("disjoint tables should not match")
	}
}

func TestComplexityRank(t *testing.T) {
	cases := []struct {
		c    Complexity
		want int
	}{
		{ComplexitySimple, 0},
		{ComplexityMedium, 1},
		{ComplexityComplex, 2},
		{Complexity("unknown"), 1},
	}
	for _, tc := range cases {
		if got := ComplexityRank(tc.c); got != tc.want {
			t.Errorf("ComplexityRank(%s)=%d want %d", tc.c, got, tc.want)
		}
	}
}

func TestRetrievalQueryValidate(t *testing.T) {
	q := &RetrievalQuery{}
	if err := q.Validate(); err == nil {
		t.Fatal("empty text should error")
	}
	q = &RetrievalQuery{Text: "list products"}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.K != 5 {
		t.Errorf("default K=%d", q.K)
	}
}
