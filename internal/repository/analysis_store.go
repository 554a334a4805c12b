package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const analysesCollection = "moderation_analyses"

// AnalysisStore persists moderation analyses in MongoDB.
type AnalysisStore struct {
	col *mongo.Collection
}

func NewAnalysisStore(db *mongo.Database) *AnalysisStore {
	return &AnalysisStore{col: db.Collection(analysesCollection)}
}

// EnsureIndexes creates the dedup index: at most one unresolved analysis per
// (user, report set). Resolved analyses are excluded so the same set can be
// analysed again after a decision.
func (s *AnalysisStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "report_set_key", Value: 1}},
			Options: options.Index().
				SetName("uniq_unresolved_report_set").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"resolved": false}),
		},
		{
			Keys:    bson.D{{Key: "resolved", Value: 1}, {Key: "notified", Value: 1}},
			Options: options.Index().SetName("idx_resolved_notified"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}
	_, err := s.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// CreateUnlessDuplicate inserts the analysis unless an unresolved analysis
// with the same report set already exists for the user, in which case the
// existing one is returned unchanged. The unique index makes the check hold
// at write time when runs overlap.
func (s *AnalysisStore) CreateUnlessDuplicate(ctx context.Context, a *models.ModerationAnalysis) (*models.ModerationAnalysis, bool, error) {
	a.ReportSetKey = models.ReportSetKey(a.AnalyzedReportIDs)

	existing, err := s.FindUnresolvedBySet(ctx, a.UserID, a.ReportSetKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, findErr := s.FindUnresolvedBySet(ctx, a.UserID, a.ReportSetKey)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert analysis: %w", err)
	}
	return a, true, nil
}

// FindUnresolvedBySet returns nil when no unresolved analysis matches.
func (s *AnalysisStore) FindUnresolvedBySet(ctx context.Context, userID, setKey string) (*models.ModerationAnalysis, error) {
	var a models.ModerationAnalysis
	err := s.col.FindOne(ctx, bson.M{
		"user_id":        userID,
		"report_set_key": setKey,
		"resolved":       false,
	}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AnalysisStore) Get(ctx context.Context, id string) (*models.ModerationAnalysis, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis %q", models.ErrNotFound, id)
	}
	var a models.ModerationAnalysis
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: analysis %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns one page of analyses, newest first, plus the total match count.
func (s *AnalysisStore) List(ctx context.Context, f models.AnalysisFilter) ([]models.ModerationAnalysis, int64, error) {
	f.Normalize()

	filter := bson.M{}
	if f.Resolved != nil {
		filter["resolved"] = *f.Resolved
	}
	if f.Classification != nil {
		filter["classification"] = *f.Classification
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.PageSize)).
		SetLimit(int64(f.PageSize))

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	analyses := []models.ModerationAnalysis{}
	if err := cursor.All(ctx, &analyses); err != nil {
		return nil, 0, err
	}
	return analyses, total, nil
}

func (s *AnalysisStore) ListPendingNotification(ctx context.Context) ([]models.ModerationAnalysis, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"resolved": false, "notified": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var analyses []models.ModerationAnalysis
	if err := cursor.All(ctx, &analyses); err != nil {
		return nil, err
	}
	return analyses, nil
}

// MarkNotified flags the given analyses as notified. Analyses already flagged
// by a concurrent run are left alone.
func (s *AnalysisStore) MarkNotified(ctx context.Context, ids []string, at time.Time) (int64, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := s.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}, "notified": false},
		bson.M{"$set": bson.M{"notified": true, "notified_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// MarkResolved applies the one-time resolution. It fails with
// ErrAlreadyResolved when the analysis was resolved in the meantime.
func (s *AnalysisStore) MarkResolved(ctx context.Context, id string, r models.Resolution) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: analysis %q", models.ErrNotFound, id)
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid, "resolved": false},
		bson.M{"$set": resolutionUpdate(r)},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", models.ErrAlreadyResolved, id)
	}
	return nil
}

func resolutionUpdate(r models.Resolution) bson.M {
	set := bson.M{
		"resolved":          true,
		"resolved_by":       r.ModeratorID,
		"resolved_at":       r.ResolvedAt,
		"resolution_action": r.Action,
		"resolution_notes":  r.Notes,
		"sanction_applied":  r.SanctionApplied,
	}
	if r.SanctionError != "" {
		set["sanction_error"] = r.SanctionError
	}
	return set
}
