package main

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRoomID(t *testing.T) {
	valid := []string{"Swift-Tiger-42", "Happy-Koala-0", "3f2c1a9e-8b4d-4c6f-9a1e-0d2b7c5e4f31", "room_1", "x"}
	for _, id := range valid {
		if err := ValidateRoomID(id); err != nil {
			t.Errorf("ValidateRoomID(%q) = %v", id, err)
		}
	}

	invalid := []string{"", " ", "_x", "a b", "a/b", "<script>", "ünïcode", strings.Repeat("a", maxRoomIDLength+1)}
	for _, id := range invalid {
		if err := ValidateRoomID(id); !errors.Is(err, ErrInvalidRoomID) {
			t.Errorf("ValidateRoomID(%q) = %v, want ErrInvalidRoomID", id, err)
		}
	}
}

func TestNewWordRoomID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewWordRoomID()
		if err := ValidateRoomID(id); err != nil {
			t.Fatalf("generated id %q invalid: %v", id, err)
		}
		if parts := strings.Split(id, "-"); len(parts) != 3 {
			t.Fatalf("generated id %q is not Adjective-Noun-N", id)
		}
	}
}

func TestNewUUIDRoomID(t *testing.T) {
	id := NewUUIDRoomID()
	if len(id) != 36 {
		t.Errorf("unexpected uuid %q", id)
	}
	if err := ValidateRoomID(id); err != nil {
		t.Errorf("uuid room id rejected: %v", err)
	}
}
