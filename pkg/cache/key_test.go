package cache

import "testing"

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple key",
			key:  CacheKey{Document: "abc123", Unit: 4},
			want: "pagebatch:extract:abc123:4",
		},
		{
			name: "empty document",
			key:  CacheKey{Unit: 1},
			want: "pagebatch:extract:_:1",
		},
		{
			name: "separators are replaced",
			key:  CacheKey{Document: "my doc:v2*", Unit: 10},
			want: "pagebatch:extract:my_doc_v2_:10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{Document: "abc", Unit: 3}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("Iteration %d: got %v, want %v (non-deterministic)", i, got, first)
		}
	}
}

func TestDocumentPattern(t *testing.T) {
	if got := DocumentPattern("abc"); got != "pagebatch:extract:abc:*" {
		t.Errorf("DocumentPattern() = %q", got)
	}
	if got := DocumentPattern("a*b"); got != "pagebatch:extract:a_b:*" {
		t.Errorf("glob characters must be escaped, got %q", got)
	}
}
