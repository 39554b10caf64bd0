package redis

import (
	"fmt"
	"time"
)

const ns = "venuebook:v1"

const dayLayout = "2006-01-02"

func KeyVenueDayBusy(venueID string, day time.Time) string {
	return fmt.Sprintf("%s:venue:%s:day:%s:busy", ns, venueID, day.Format(dayLayout))
}

func KeyVenue(venueID string) string {
	return fmt.Sprintf("%s:catalog:venue:%s", ns, venueID)
}

func KeyService(serviceID string) string {
	return fmt.Sprintf("%s:catalog:service:%s", ns, serviceID)
}

func KeyUser(userID string) string {
	return fmt.Sprintf("%s:catalog:user:%s", ns, userID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

// KeyIdempotency scopes a client-supplied Idempotency-Key to the operation
// and the caller so two users cannot collide.
func KeyIdempotency(scope, actorID, idemKey string) string {
	return fmt.Sprintf("%s:idem:%s:%s:%s", ns, scope, actorID, idemKey)
}

func ChannelVenueDayChanged() string {
	return ns + ":venue-days:changed"
}
