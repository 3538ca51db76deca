package netalias

import "testing"

func TestLabelTruncatesToOSLimit(t *testing.T) {
	got := Label("eth0", "a-very-long-instance-identifier")
	if len(got) > MaxLabelLen {
		t.Fatalf("label %q exceeds MaxLabelLen (%d): len=%d", got, MaxLabelLen, len(got))
	}
}

func TestLabelIncludesInterfaceAndInstance(t *testing.T) {
	got := Label("eth0", "s1")
	want := "eth0:iecs1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsNoOpAddressWildcardAndLoopback(t *testing.T) {
	cases := map[string]bool{
		"0.0.0.0":     true,
		"127.0.0.1":   true,
		"127.1.2.3":   true,
		"10.0.0.1":    false,
		"192.168.1.1": false,
	}
	for ip, want := range cases {
		if got := isNoOpAddress(ip); got != want {
			t.Errorf("isNoOpAddress(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestAddIPAddressNoOpsOnWildcardAndLoopback(t *testing.T) {
	if !AddIPAddress("eth0", "0.0.0.0", 24, "eth0:iecX") {
		t.Error("expected true for wildcard address")
	}
	if !AddIPAddress("eth0", "127.0.0.1", 8, "eth0:iecX") {
		t.Error("expected true for loopback address")
	}
}

func TestRemoveIPAddressNoOpsOnWildcardAndLoopback(t *testing.T) {
	if !RemoveIPAddress("eth0", "0.0.0.0", 24) {
		t.Error("expected true for wildcard address")
	}
	if !RemoveIPAddress("eth0", "127.0.0.1", 8) {
		t.Error("expected true for loopback address")
	}
}

func TestIsExistsErr(t *testing.T) {
	if !isExistsErr(fmtErr("file exists")) {
		t.Error("expected true for 'file exists'")
	}
	if isExistsErr(fmtErr("permission denied")) {
		t.Error("expected false for unrelated error")
	}
}

func TestIsNotFoundErr(t *testing.T) {
	if !isNotFoundErr(fmtErr("Cannot assign requested address")) {
		t.Error("expected true for 'cannot assign requested address'")
	}
	if !isNotFoundErr(fmtErr("no such device")) {
		t.Error("expected true for 'no such device'")
	}
	if isNotFoundErr(fmtErr("permission denied")) {
		t.Error("expected false for unrelated error")
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func fmtErr(msg string) error { return simpleErr(msg) }
