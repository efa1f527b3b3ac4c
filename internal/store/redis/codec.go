package redis

import (
	"encoding/json"
	"fmt"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"strconv"
	"time"
)

// pairsToMap converts a flat HGETALL reply from a script into a map.
func pairsToMap(reply any) (map[string]string, error) {
	items, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected claim reply %T", reply)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("odd number of hash fields: %d", len(items))
	}
	fields := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		v, _ := items[i+1].(string)
		fields[k] = v
	}
	return fields, nil
}

func decodeEnvelope(fields map[string]string) (*types.Envelope, error) {
	if fields["id"] == "" {
		return nil, fmt.Errorf("envelope hash has no id")
	}
	attempt, err := parseAttempt(fields)
	if err != nil {
		return nil, err
	}
	env := &types.Envelope{
		ID:          fields["id"],
		Category:    types.Category(fields["category"]),
		Name:        fields["name"],
		Payload:     json.RawMessage(fields["payload"]),
		Status:      state.JobStatus(fields["state"]),
		Attempt:     attempt,
		EnqueuedAt:  parseMillis(fields["enqueued_at"]),
		AvailableAt: parseMillis(fields["available_at"]),
	}
	if v, ok := fields["lease_expires_at"]; ok && v != "" {
		t := parseMillis(v)
		env.LeaseExpiresAt = &t
	}
	if v, ok := fields["last_error"]; ok && v != "" {
		env.LastError = &v
	}
	if v, ok := fields["completed_at"]; ok && v != "" {
		t := parseMillis(v)
		env.CompletedAt = &t
	}
	return env, nil
}

func parseAttempt(fields map[string]string) (int, error) {
	attempt, err := strconv.Atoi(fields["attempt"])
	if err != nil {
		return 0, fmt.Errorf("envelope %s: bad attempt %q: %w", fields["id"], fields["attempt"], err)
	}
	return attempt, nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
