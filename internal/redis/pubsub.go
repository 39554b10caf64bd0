package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// VenueDayPubSub broadcasts booking changes of a venue day so every instance
// can drop its cached busy windows.
type VenueDayPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewVenueDayPubSub(rdb *redis.Client) *VenueDayPubSub {
	return &VenueDayPubSub{
		rdb:     rdb,
		channel: ChannelVenueDayChanged(),
	}
}

type venueDayChangedMsg struct {
	Type    string `json:"type"`
	VenueID string `json:"venue_id"`
	Day     string `json:"day"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *VenueDayPubSub) PublishVenueDayChanged(ctx context.Context, venueID string, day time.Time) error {
	msg := venueDayChangedMsg{
		Type:    "venue_day_changed",
		VenueID: venueID,
		Day:     day.Format(dayLayout),
		TsUnix:  time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks delivering changes to handler until ctx is done.
func (p *VenueDayPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, venueID string, day time.Time)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if venueID, day, ok := decodeVenueDayChanged(m.Payload); ok {
				handler(ctx, venueID, day)
			}
		}
	}
}

func decodeVenueDayChanged(payload string) (string, time.Time, bool) {
	var msg venueDayChangedMsg
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.VenueID == "" {
		return "", time.Time{}, false
	}

	day, err := time.Parse(dayLayout, msg.Day)
	if err != nil {
		return "", time.Time{}, false
	}

	return msg.VenueID, day, true
}
