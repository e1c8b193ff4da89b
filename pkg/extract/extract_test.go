package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "single page", text: "only page", want: 1},
		{name: "three pages", text: "a\fb\fc", want: 3},
		{name: "trailing form feed", text: "a\fb\f", want: 2},
		{name: "empty", text: "", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitPages(tt.text).Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPages_Extract(t *testing.T) {
	p := NewPages([]string{"first", "second"})

	text, err := p.Extract(context.Background(), 2)
	if err != nil || text != "second" {
		t.Errorf("Extract(2) = %q, %v", text, err)
	}

	for _, id := range []int{0, 3, -1} {
		_, err := p.Extract(context.Background(), id)
		if !errors.Is(err, ErrUnitOutOfRange) {
			t.Errorf("Extract(%d) error = %v, want ErrUnitOutOfRange", id, err)
		}
		var ee *Error
		if !errors.As(err, &ee) || ee.UnitID != id {
			t.Errorf("Extract(%d) error = %v, want *Error for unit", id, err)
		}
	}
}

func TestPages_ExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPages([]string{"x"}).Extract(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestConcat(t *testing.T) {
	p := NewPages([]string{" one ", "two", "three"})

	got, err := Concat(context.Background(), p, []int{1, 3})
	if err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	want := "--- Page 1 ---\none\n\n--- Page 3 ---\nthree"
	if got != want {
		t.Errorf("Concat() = %q, want %q", got, want)
	}

	if _, err := Concat(context.Background(), p, []int{1, 7}); !errors.Is(err, ErrUnitOutOfRange) {
		t.Errorf("Concat() error = %v, want ErrUnitOutOfRange", err)
	}
}

func TestConcat_WrapsForeignErrors(t *testing.T) {
	boom := errors.New("ocr failed")
	ex := ExtractorFunc(func(ctx context.Context, unitID int) (string, error) {
		return "", boom
	})

	_, err := Concat(context.Background(), ex, []int{4})
	var ee *Error
	if !errors.As(err, &ee) || ee.UnitID != 4 || !errors.Is(err, boom) {
		t.Errorf("Concat() error = %v", err)
	}
}

func TestDocumentID(t *testing.T) {
	a := DocumentID([]byte("hello"))
	b := DocumentID([]byte("hello"))
	c := DocumentID([]byte("world"))

	if a != b {
		t.Error("DocumentID must be deterministic")
	}
	if a == c {
		t.Error("different content should give different ids")
	}
	if len(a) != 16 || strings.ContainsAny(a, ":*") {
		t.Errorf("DocumentID() = %q", a)
	}
}
