package allocation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	orderNumberSuffixLen = 9
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	baseDeliveryHours = 2
	kmPerDeliveryHour = 50.0
)

// NewOrderNumber formats ORD-<unix millis>-<9 base36 chars>. It is not
// guaranteed unique; the store's unique constraint catches clashes.
func NewOrderNumber(now time.Time) string {
	var suffix strings.Builder
	suffix.Grow(orderNumberSuffixLen)
	for range orderNumberSuffixLen {
		suffix.WriteByte(base36Alphabet[rand.IntN(len(base36Alphabet))])
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix.String())
}

// EstimateDeliveryHours is two hours of handling plus one hour per started 50 km.
func EstimateDeliveryHours(distanceKm float64) int {
	return baseDeliveryHours + int(math.Ceil(distanceKm/kmPerDeliveryHour))
}
