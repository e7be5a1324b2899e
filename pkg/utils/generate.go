package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func ParseUUID(uuidStr string) (uuid.UUID, error) {
	return uuid.Parse(uuidStr)
}

// GenerateBookingNumber creates a human-readable booking number.
// Format: TIX-YYYYMMDD-HHMMSS-RANDOM
func GenerateBookingNumber() string {
	rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()

	datePart := now.Format("20060102")
	timePart := now.Format("150405")
	randomPart := fmt.Sprintf("%04d", rand.Intn(10000))

	return fmt.Sprintf("TIX-%s-%s-%s", datePart, timePart, randomPart)
}
