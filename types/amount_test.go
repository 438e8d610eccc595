package types

import (
	"errors"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{"Simple", "30", 30, nil},
		{"LeadingZeros", "007", 7, nil},
		{"MaxInt64", "9223372036854775807", 9223372036854775807, nil},
		{"Zero", "0", 0, ErrAmountNotPositive},
		{"AllZeros", "000", 0, ErrAmountNotPositive},
		{"Empty", "", 0, ErrAmountNotInteger},
		{"Negative", "-5", 0, ErrAmountNotInteger},
		{"Plus", "+5", 0, ErrAmountNotInteger},
		{"Decimal", "1.5", 0, ErrAmountNotInteger},
		{"Letters", "ten", 0, ErrAmountNotInteger},
		{"Space", " 5", 0, ErrAmountNotInteger},
		{"Superscript", "²", 0, ErrAmountNotInteger},
		{"ArabicIndic", "٣", 0, ErrAmountNotInteger},
		{"Overflow", "9223372036854775808", 0, ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseAmount(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestEntityTouch(t *testing.T) {
	e := NewEntity()
	if !e.CreatedAt.Equal(e.UpdatedAt) {
		t.Fatalf("new entity timestamps differ: %v vs %v", e.CreatedAt, e.UpdatedAt)
	}
	if e.CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", e.CreatedAt.Location())
	}

	before := e.UpdatedAt
	time.Sleep(time.Millisecond)
	e.Touch()
	if !e.UpdatedAt.After(before) {
		t.Errorf("Touch did not advance UpdatedAt")
	}
	if e.Age() <= 0 {
		t.Errorf("expected positive age")
	}
}
