package session

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Errorf("new registry has %d sessions, want 0", r.Len())
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get for missing id returned ok=true")
	}
}

func TestReplaceReportsDiff(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	added, removed := r.Replace([]Session{{ID: "a", LastActivity: now}, {ID: "b", LastActivity: now}})
	if !reflect.DeepEqual(added, []string{"a", "b"}) || removed != nil {
		t.Fatalf("first replace: added=%v removed=%v", added, removed)
	}

	added, removed = r.Replace([]Session{{ID: "b", LastActivity: now}, {ID: "c", LastActivity: now}})
	if !reflect.DeepEqual(added, []string{"c"}) || !reflect.DeepEqual(removed, []string{"a"}) {
		t.Errorf("second replace: added=%v removed=%v", added, removed)
	}
	if _, ok := r.Get("a"); ok {
		t.Error("session a survived a snapshot that omitted it")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestListOrdering(t *testing.T) {
	base := time.Unix(1700000000, 0)
	r := NewRegistry()
	r.Replace([]Session{
		{ID: "1", Name: "zeta", LastActivity: base},
		{ID: "2", Name: "alpha", LastActivity: base},
		{ID: "3", Name: "old", LastActivity: base.Add(-time.Hour)},
		{ID: "4", Name: "new", LastActivity: base.Add(time.Hour)},
	})

	var got []string
	for _, s := range r.List() {
		got = append(got, s.Name)
	}
	want := []string{"new", "alpha", "zeta", "old"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListIndependentOfArrivalOrder(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	genSessions := gen.SliceOf(gen.Struct(reflect.TypeOf(Session{}), map[string]gopter.Gen{
		"ID":   gen.Identifier(),
		"Name": gen.OneConstOf("alpha", "beta", "gamma", "Unknown"),
		"LastActivity": gen.Int64Range(0, 5).Map(func(n int64) time.Time {
			return time.Unix(1700000000+n, 0)
		}),
	}))

	properties.Property("List is a pure function of the snapshot", prop.ForAll(
		func(sessions []Session, seed int64) bool {
			shuffled := append([]Session(nil), sessions...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			a, b := NewRegistry(), NewRegistry()
			a.Replace(dedupe(sessions))
			b.Replace(dedupe(shuffled))
			return reflect.DeepEqual(a.List(), b.List())
		},
		genSessions,
		gen.Int64(),
	))

	properties.Property("List is sorted by time desc then name asc", prop.ForAll(
		func(sessions []Session) bool {
			r := NewRegistry()
			r.Replace(sessions)
			list := r.List()
			for i := 1; i < len(list); i++ {
				if Less(list[i], list[i-1]) {
					return false
				}
			}
			return true
		},
		genSessions,
	))

	properties.TestingRun(t)
}

// dedupe keeps the first occurrence of each id so shuffled duplicates cannot
// change which record wins.
func dedupe(in []Session) []Session {
	seen := make(map[string]bool, len(in))
	var out []Session
	for _, s := range in {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

func TestShortID(t *testing.T) {
	tests := []struct{ id, want string }{
		{"0123456789abcdef", "01234567"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := (Session{ID: tt.id}).ShortID(); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func BenchmarkList(b *testing.B) {
	r := NewRegistry()
	var sessions []Session
	for i := 0; i < 200; i++ {
		sessions = append(sessions, Session{ID: fmt.Sprint(i), Name: fmt.Sprint("s", i%17), LastActivity: time.Unix(int64(i%13), 0)})
	}
	r.Replace(sessions)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.List()
	}
}
