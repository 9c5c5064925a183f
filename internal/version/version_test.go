package version

import "testing"

func TestGet(t *testing.T) {
	if got := Get(); got != "0.1.0" {
		t.Errorf("Get() = %q, want %q", got, "0.1.0")
	}
}

func TestGet_Override(t *testing.T) {
	old := override
	t.Cleanup(func() { override = old })

	override = " 2.0.0-rc1\n"
	if got := Get(); got != "2.0.0-rc1" {
		t.Errorf("Get() = %q, want %q", got, "2.0.0-rc1")
	}
}
