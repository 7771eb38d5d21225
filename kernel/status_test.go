package kernel

import "testing"

func TestStatusErr(t *testing.T) {
	if err := StatusOK.Err(); err != nil {
		t.Fatalf("expected nil for success, got %v", err)
	}
	for _, s := range []Status{StatusFail, StatusBusy, StatusAlready, StatusInvalid, StatusSize, StatusNoMem, StatusNoSupport, StatusNoDevice} {
		err := s.Err()
		if err == nil {
			t.Fatalf("expected error for %s", s)
		}
		if err != s {
			t.Fatalf("expected %v to unwrap to itself, got %v", s, err)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "ok"},
		{StatusBusy, "busy"},
		{StatusAlready, "already"},
		{StatusNoSupport, "no support"},
		{Status(-99), "status -99"},
	}
	for _, test := range tests {
		if got := test.status.String(); got != test.want {
			t.Errorf("expected %q, got %q", test.want, got)
		}
	}
}

func TestStatusError(t *testing.T) {
	const want = "kernel: busy"
	if got := StatusBusy.Error(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
