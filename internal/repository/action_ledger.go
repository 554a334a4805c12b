package repository

import (
	"context"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const actionsCollection = "moderation_actions"

// ActionLedger is the append-only audit trail of sanctions.
type ActionLedger struct {
	col *mongo.Collection
}

func NewActionLedger(db *mongo.Database) *ActionLedger {
	return &ActionLedger{col: db.Collection(actionsCollection)}
}

func (l *ActionLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created_at"),
		},
		{
			Keys:    bson.D{{Key: "analysis_id", Value: 1}},
			Options: options.Index().SetName("idx_analysis_id").SetSparse(true),
		},
	})
	return err
}

func (l *ActionLedger) Append(ctx context.Context, action *models.ModerationAction) error {
	if action.ID.IsZero() {
		action.ID = primitive.NewObjectID()
	}
	_, err := l.col.InsertOne(ctx, action)
	return err
}

// ListByUser returns the user's audit history, newest first.
func (l *ActionLedger) ListByUser(ctx context.Context, userID string, limit int64) ([]models.ModerationAction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cursor, err := l.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	actions := []models.ModerationAction{}
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}
