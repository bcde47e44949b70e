package sim

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Kind
		wantErr bool
	}{
		{name: "threads", in: "threads", want: KindThreads},
		{name: "grid", in: "grid", want: KindGrid},
		{name: "empty", in: "", wantErr: true},
		{name: "unknown", in: "cuda", wantErr: true},
		{name: "case sensitive", in: "Threads", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKind(%q): expected error, got nil", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewBackend(t *testing.T) {
	st := denseState(t, 8)

	b, err := NewBackend(KindThreads, st, DefaultParams(), Options{Workers: 2})
	if err != nil {
		t.Fatalf("NewBackend(threads): %v", err)
	}
	if _, ok := b.(*Threads); !ok {
		t.Errorf("NewBackend(threads) = %T, want *Threads", b)
	}

	b, err = NewBackend(KindGrid, st, DefaultParams(), Options{GridBlock: 64})
	if err != nil {
		t.Fatalf("NewBackend(grid): %v", err)
	}
	if _, ok := b.(*Grid); !ok {
		t.Errorf("NewBackend(grid) = %T, want *Grid", b)
	}

	if _, err := NewBackend(Kind("bogus"), st, DefaultParams(), Options{}); err == nil {
		t.Error("NewBackend(bogus): expected error, got nil")
	}
}
