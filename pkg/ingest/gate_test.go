package ingest

import (
	"testing"

	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

func records(codes ...string) []model.Record {
	out := make([]model.Record, 0, len(codes))
	for _, c := range codes {
		out = append(out, model.Record{Code: c, Extra: map[string]any{}})
	}
	return out
}

func TestFilterNewDropsKnownPreservingOrder(t *testing.T) {
	known := NewIdentitySet("002", "004")
	got := FilterNew(records("001", "002", "003", "004", "005"), known)

	want := []string{"001", "003", "005"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, rec := range got {
		if rec.Code != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], rec.Code)
		}
		if known.Contains(rec.Code) {
			t.Errorf("known code %q survived the gate", rec.Code)
		}
	}
}

func TestFilterNewEmptyKnownSetPassesThrough(t *testing.T) {
	in := records("001", "002")
	got := FilterNew(in, NewIdentitySet())
	if len(got) != len(in) {
		t.Fatalf("expected input unchanged, got %d records", len(got))
	}
	got = FilterNew(in, nil)
	if len(got) != len(in) {
		t.Fatalf("nil set: expected input unchanged, got %d records", len(got))
	}
}

func TestFilterNewAllKnownIsEmptyResult(t *testing.T) {
	got := FilterNew(records("001", "002"), NewIdentitySet("001", "002"))
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d records", len(got))
	}
}
