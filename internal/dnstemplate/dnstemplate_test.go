package dnstemplate

import (
	"sort"
	"testing"
)

func TestLookupKnownTemplates(t *testing.T) {
	for _, id := range []string{"web-basic", "email-basic", "parked"} {
		tpl, ok := Lookup(id)
		if !ok {
			t.Fatalf("template %q missing", id)
		}
		if len(tpl.Records) == 0 {
			t.Fatalf("template %q has no records", id)
		}
		for _, rec := range tpl.Records {
			if rec.Type == "" || rec.Name == "" || rec.Value == "" || rec.TTL <= 0 {
				t.Fatalf("template %q has malformed record %+v", id, rec)
			}
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("no-such-template"); ok {
		t.Fatal("unknown template id resolved")
	}
}

func TestDefaultIDPresent(t *testing.T) {
	if _, ok := Lookup(DefaultID); !ok {
		t.Fatalf("default template %q missing", DefaultID)
	}
}

func TestIDsSorted(t *testing.T) {
	ids := IDs()
	if len(ids) < 3 {
		t.Fatalf("ids: got %v", ids)
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("ids not sorted: %v", ids)
	}
}

func TestRenderExpandsDomain(t *testing.T) {
	tpl, ok := Lookup("email-basic")
	if !ok {
		t.Fatal("email-basic missing")
	}
	records := tpl.Render("shop.com")

	foundMX := false
	for _, rec := range records {
		if rec.Type == "MX" {
			foundMX = true
			if rec.Value != "mx.shop.com" {
				t.Fatalf("mx value: got %q, want mx.shop.com", rec.Value)
			}
			if rec.Prio != 10 {
				t.Fatalf("mx prio: got %d, want 10", rec.Prio)
			}
		}
	}
	if !foundMX {
		t.Fatal("no MX record in email-basic")
	}

	// Render must not mutate the catalog entry.
	again, _ := Lookup("email-basic")
	for _, rec := range again.Records {
		if rec.Type == "MX" && rec.Value != "mx.{domain}" {
			t.Fatalf("catalog mutated: %q", rec.Value)
		}
	}
}
