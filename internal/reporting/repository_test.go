package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/openclinic-ke/gbvcare/internal/patient"
)

func TestWhereForEmpty(t *testing.T) {
	where, args := WhereFor(patient.Filter{}, Window{})
	if where != "" || args != nil {
		t.Errorf("empty inputs should produce no clause, got %q %v", where, args)
	}
}

func TestWhereForFilterAndWindow(t *testing.T) {
	f := patient.Filter{Sex: "F", ViolenceType: "sexual"}
	w := Window{
		Start:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC),
		Bounded: true,
	}

	where, args := WhereFor(f, w)

	if !strings.HasPrefix(where, "WHERE ") {
		t.Fatalf("clause = %q", where)
	}
	// Filter args first, then the window bounds continue the numbering.
	for _, want := range []string{"p.sex = $1", "p.violence_type = $2", "p.arrival_at >= $3", "p.arrival_at <= $4"} {
		if !strings.Contains(where, want) {
			t.Errorf("clause %q missing %q", where, want)
		}
	}
	if len(args) != 4 {
		t.Fatalf("args = %v, want 4", args)
	}
	if args[2] != "2026-01-01T00:00:00" || args[3] != "2026-01-31T23:59:59" {
		t.Errorf("window bounds = %v %v", args[2], args[3])
	}
}

func TestWhereForWindowOnly(t *testing.T) {
	w := Window{
		Start:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC),
		Bounded: true,
	}

	where, args := WhereFor(patient.Filter{}, w)
	if !strings.Contains(where, "p.arrival_at >= $1") || !strings.Contains(where, "p.arrival_at <= $2") {
		t.Errorf("clause = %q", where)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}
