package main

import (
	"fmt"
	"math/rand/v2"
	"regexp"

	"github.com/google/uuid"
)

const maxRoomIDLength = 128

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateRoomID accepts word slugs ("Swift-Tiger-42") and UUIDs.
func ValidateRoomID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRoomID)
	}
	if len(id) > maxRoomIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidRoomID, maxRoomIDLength)
	}
	if !roomIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidRoomID, id)
	}
	return nil
}

var (
	roomAdjectives = []string{
		"Happy", "Lucky", "Sunny", "Cosmic", "Magic", "Super", "Mega", "Hyper", "Ultra", "Power",
		"Red", "Blue", "Green", "Gold", "Silver", "Neon", "Cyber", "Turbo", "Rapid", "Swift",
		"Brave", "Calm", "Cool", "Wild", "Wise", "Epic", "Rare", "Bold", "Bright", "Sharp",
	}
	roomNouns = []string{
		"Tiger", "Dragon", "Eagle", "Lion", "Wolf", "Bear", "Hawk", "Fox", "Panda", "Koala",
		"Star", "Moon", "Sun", "Comet", "Planet", "Rocket", "Ship", "Jet", "Bike", "Car",
		"Ninja", "Wizard", "Knight", "King", "Queen", "Ace", "Hero", "Legend", "Ghost", "Spirit",
	}
)

// NewWordRoomID returns an "Adjective-Noun-N" slug with N in [0, 999].
func NewWordRoomID() string {
	adj := roomAdjectives[rand.IntN(len(roomAdjectives))]
	noun := roomNouns[rand.IntN(len(roomNouns))]
	return fmt.Sprintf("%s-%s-%d", adj, noun, rand.IntN(1000))
}

func NewUUIDRoomID() string {
	return uuid.NewString()
}
