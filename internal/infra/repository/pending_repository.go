package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
)

const (
	pendingKeyPrefix = "schedule:pending:"
	dueSetKey        = "schedule:due"

	// Records linger past their fire time so a slow dispatcher never
	// loses a due notification to key expiry.
	retentionAfterFire = 24 * time.Hour
)

type notificationRecord struct {
	Identifier string    `json:"identifier"`
	UserID     string    `json:"user_id"`
	Medication string    `json:"medication"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Category   string    `json:"category"`
	FireAt     time.Time `json:"fire_at"`
}

type PendingNotificationRepository struct {
	client *redis.Client
}

func NewPendingNotificationRepository(client *redis.Client) *PendingNotificationRepository {
	return &PendingNotificationRepository{
		client: client,
	}
}

var _ domain.NotificationSink = (*PendingNotificationRepository)(nil)

func (r *PendingNotificationRepository) RequestPermission(ctx context.Context) (bool, error) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return false, ErrRedisConnection
	}
	return true, nil
}

func (r *PendingNotificationRepository) Add(ctx context.Context, n domain.Notification) error {
	record := notificationRecord{
		Identifier: n.Identifier,
		UserID:     n.UserID,
		Medication: n.Medication,
		Kind:       string(n.Kind),
		Title:      n.Title,
		Body:       n.Body,
		Category:   n.Category,
		FireAt:     n.FireAt,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return ErrInvalidNotificationData
	}

	ttl := time.Until(n.FireAt) + retentionAfterFire
	if ttl < retentionAfterFire {
		ttl = retentionAfterFire
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, pendingKeyPrefix+n.Identifier, data, ttl)
	pipe.ZAdd(ctx, dueSetKey, redis.Z{
		Score:  float64(n.FireAt.Unix()),
		Member: n.Identifier,
	})

	_, err = pipe.Exec(ctx)
	return err
}

func (r *PendingNotificationRepository) RemoveByIdentifiers(ctx context.Context, identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}

	members := make([]interface{}, 0, len(identifiers))
	pipe := r.client.TxPipeline()
	for _, id := range identifiers {
		pipe.Del(ctx, pendingKeyPrefix+id)
		members = append(members, id)
	}
	pipe.ZRem(ctx, dueSetKey, members...)

	_, err := pipe.Exec(ctx)
	return err
}

// ListPending returns full records under the identifier prefix, ordered by
// identifier. Records that expire between the scan and the fetch are skipped.
func (r *PendingNotificationRepository) ListPending(ctx context.Context, prefix string) ([]domain.Notification, error) {
	pattern := pendingKeyPrefix + prefix + "*"
	identifiers := make([]string, 0)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		identifiers = append(identifiers, iter.Val()[len(pendingKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(identifiers)

	notifications := make([]domain.Notification, 0, len(identifiers))
	for _, id := range identifiers {
		n, err := r.get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotificationNotFound) {
				continue
			}
			return nil, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, nil
}

// PopDue atomically claims notifications whose fire time has passed.
// Claimed records are removed so a concurrent dispatcher cannot send
// the same notification twice.
func (r *PendingNotificationRepository) PopDue(ctx context.Context, now time.Time, limit int64) ([]domain.Notification, error) {
	identifiers, err := r.client.ZRangeByScore(ctx, dueSetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(identifiers) == 0 {
		return nil, nil
	}

	notifications := make([]domain.Notification, 0, len(identifiers))
	for _, id := range identifiers {
		removed, err := r.client.ZRem(ctx, dueSetKey, id).Result()
		if err != nil {
			return notifications, err
		}
		if removed == 0 {
			// Another dispatcher claimed it first.
			continue
		}

		n, err := r.get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotificationNotFound) {
				continue
			}
			return notifications, err
		}

		if err := r.client.Del(ctx, pendingKeyPrefix+id).Err(); err != nil {
			return notifications, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, nil
}

// Requeue reinserts a claimed notification with its original fire time so
// the next dispatch tick retries it.
func (r *PendingNotificationRepository) Requeue(ctx context.Context, n domain.Notification) error {
	return r.Add(ctx, n)
}

func (r *PendingNotificationRepository) get(ctx context.Context, identifier string) (*domain.Notification, error) {
	data, err := r.client.Get(ctx, pendingKeyPrefix+identifier).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}

	var record notificationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ErrInvalidNotificationData
	}

	return &domain.Notification{
		Identifier: record.Identifier,
		UserID:     record.UserID,
		Medication: record.Medication,
		Kind:       domain.Kind(record.Kind),
		Title:      record.Title,
		Body:       record.Body,
		Category:   record.Category,
		FireAt:     record.FireAt,
	}, nil
}
