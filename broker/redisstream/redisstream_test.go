package redisstream

import "testing"

func TestToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"int64", int64(42), 42},
		{"string digits", "123", 123},
		{"string empty", "", 0},
		{"unsupported type", 3.14, 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toInt64(tt.in); got != tt.want {
				t.Errorf("toInt64(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsBusyGroupErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busygroup", busyGroupError{}, true},
		{"other", otherError{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBusyGroupErr(tt.err); got != tt.want {
				t.Errorf("isBusyGroupErr() = %v, want %v", got, tt.want)
			}
		})
	}
}

type busyGroupError struct{}

func (busyGroupError) Error() string { return "BUSYGROUP Consumer Group name already exists" }

type otherError struct{}

func (otherError) Error() string { return "connection refused" }
