package kcore

import "testing"

func TestBitmap_SetClearTest(t *testing.T) {
	b := NewBitmap(130)

	for _, id := range []int{0, 1, 63, 64, 65, 129} {
		if b.Test(id) {
			t.Fatalf("id %d set before Set called", id)
		}
		b.Set(id)
		if !b.Test(id) {
			t.Fatalf("id %d not set after Set", id)
		}
	}

	if b.Empty() {
		t.Fatal("Empty() true with bits set")
	}

	if got, want := b.Count(), 6; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}

	b.Clear(64)
	if b.Test(64) {
		t.Fatal("id 64 still set after Clear")
	}
	if got, want := b.Count(), 5; got != want {
		t.Fatalf("Count() after Clear = %d, want %d", got, want)
	}
}

func TestBitmap_NextSet(t *testing.T) {
	cases := []struct {
		name string
		ids  []int
		from int
		want int
		ok   bool
	}{
		{name: "empty bitmap", ids: nil, from: 0, ok: false},
		{name: "first bit", ids: []int{3, 70}, from: 0, want: 3, ok: true},
		{name: "skip past first", ids: []int{3, 70}, from: 4, want: 70, ok: true},
		{name: "exact match", ids: []int{3, 70}, from: 70, want: 70, ok: true},
		{name: "past last", ids: []int{3, 70}, from: 71, ok: false},
		{name: "word boundary", ids: []int{63, 64}, from: 64, want: 64, ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBitmap(128)
			for _, id := range tc.ids {
				b.Set(id)
			}
			got, ok := b.NextSet(tc.from)
			if ok != tc.ok {
				t.Fatalf("NextSet(%d) ok = %v, want %v", tc.from, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("NextSet(%d) = %d, want %d", tc.from, got, tc.want)
			}
		})
	}
}
