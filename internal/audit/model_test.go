package audit

import "testing"

func TestEntryHashRoundTrip(t *testing.T) {
	e := NewEntry(ActorTypeStaff, "user-1", "10.0.0.1",
		"patient.registered", "patient", "p-1",
		map[string]any{"opd_no": "OPD-1001"}, "")

	if e.Hash == "" {
		t.Fatal("expected hash to be set")
	}
	if !e.VerifyHash() {
		t.Error("fresh entry should verify")
	}

	// Any content edit breaks the hash.
	e.Action = "patient.deleted"
	if e.VerifyHash() {
		t.Error("edited entry should not verify")
	}
}

func TestEntryHashIncludesPrevHash(t *testing.T) {
	a := NewEntry(ActorTypeStaff, "u1", "", "auth.login", "user", "", nil, "")
	b := NewEntry(ActorTypeStaff, "u1", "", "auth.login", "user", "", nil, a.Hash)

	if a.Hash == b.Hash {
		t.Error("entries with different prev_hash should hash differently")
	}

	// Rewriting the link invalidates the entry.
	b.PrevHash = "forged"
	if b.VerifyHash() {
		t.Error("entry with altered prev_hash should not verify")
	}
}

func TestCanonicalJSONStableKeys(t *testing.T) {
	data := map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"n": []any{"b", "a"}, "m": 2},
	}

	first, err := canonicalJSON(data)
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := canonicalJSON(data)
		if err != nil {
			t.Fatalf("canonicalJSON: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("canonical output not stable: %s vs %s", first, again)
		}
	}

	want := `{"alpha":{"m":2,"n":["b","a"]},"zebra":1}`
	if string(first) != want {
		t.Errorf("canonical output = %s, want %s", first, want)
	}
}

func TestChangesNormalization(t *testing.T) {
	// A typed payload and its decoded-JSON form must audit the same.
	type payload struct {
		PatientID string `json:"patient_id"`
		OPDNo     string `json:"opd_no"`
	}

	typed := asMap(payload{PatientID: "p-1", OPDNo: "OPD-1"})
	decoded := asMap(map[string]any{"patient_id": "p-1", "opd_no": "OPD-1"})

	if typed["patient_id"] != decoded["patient_id"] || typed["opd_no"] != decoded["opd_no"] {
		t.Errorf("normalization mismatch: %v vs %v", typed, decoded)
	}

	if got := resourceID(map[string]any{"patient_id": "p-9"}); got != "p-9" {
		t.Errorf("resourceID = %q", got)
	}
	if got := resourceID(map[string]any{"follow_up_id": "f-1", "patient_id": "p-1"}); got != "f-1" {
		t.Errorf("follow_up_id should win: %q", got)
	}
	if got := resourceID(map[string]any{"other": 1}); got != "" {
		t.Errorf("resourceID = %q, want empty", got)
	}
}
