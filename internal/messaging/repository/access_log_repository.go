package repository

import (
	"context"

	"secure_messaging_service/internal/messaging/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccessLogCollection mongo collection of message access entries
const AccessLogCollection = "message_access_logs"

// AccessLogRepository message access audit trail
type AccessLogRepository interface {
	InsertMany(ctx context.Context, logs []domain.AccessLog) error
	FindByMessage(ctx context.Context, messageID string) ([]domain.AccessLog, error)
}

type mongoAccessLogRepository struct {
	coll *mongo.Collection
}

// NewMongoAccessLogRepository create an AccessLogRepository
func NewMongoAccessLogRepository(db *mongo.Database) AccessLogRepository {
	return &mongoAccessLogRepository{
		coll: db.Collection(AccessLogCollection),
	}
}

func (r *mongoAccessLogRepository) InsertMany(ctx context.Context, logs []domain.AccessLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(logs))
	for i := range logs {
		docs[i] = logs[i]
	}
	// 部分寫入失敗不影響其他筆
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

func (r *mongoAccessLogRepository) FindByMessage(ctx context.Context, messageID string) ([]domain.AccessLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "accessed_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"message_id": messageID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var logs []domain.AccessLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
