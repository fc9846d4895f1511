package ids

import "testing"

func TestNewIsValid(t *testing.T) {
	id := New()
	if err := Validate(id); err != nil {
		t.Fatalf("generated id failed validation: %v", err)
	}
	if IsTemp(id) {
		t.Error("plain id should not be temporary")
	}
}

func TestNewTemp(t *testing.T) {
	id := NewTemp()
	if !IsTemp(id) {
		t.Fatalf("expected temp prefix on %q", id)
	}
	if err := Validate(id); err != nil {
		t.Errorf("temp id failed validation: %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	for _, id := range []string{"", "abc", "tmp_", "tmp_abc", "00000000-0000-0000-0000-000000000000"} {
		if err := Validate(id); err == nil {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTemp()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
