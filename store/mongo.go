package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

// MongoStore implements consult.RunStore using MongoDB. Runs embed their
// pass records in a single document; comparisons live in a sibling
// collection.
type MongoStore struct {
	client      *mongo.Client
	db          *mongo.Database
	runs        *mongo.Collection
	comparisons *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI      string
	Database string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:      "mongodb://localhost:27017",
		Database: "geetanjali",
	}
}

// mongoRun is the document shape for one consultation run.
type mongoRun struct {
	ID              string               `bson:"_id"`
	CaseID          string               `bson:"case_id"`
	Title           string               `bson:"title,omitempty"`
	Description     string               `bson:"description"`
	Status          string               `bson:"status"`
	Passes          []mongoPass          `bson:"passes,omitempty"`
	PassesCompleted int                  `bson:"passes_completed"`
	FailedAtPass    int                  `bson:"failed_at_pass"`
	Result          *consult.Brief       `bson:"result,omitempty"`
	Confidence      float64              `bson:"confidence"`
	ScholarFlag     bool                 `bson:"scholar_flag"`
	FallbackUsed    bool                 `bson:"fallback_used"`
	FallbackReason  string               `bson:"fallback_reason,omitempty"`
	TotalDurationMS int64                `bson:"total_duration_ms"`
	TotalTokens     int                  `bson:"total_tokens"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

type mongoPass struct {
	ID         string    `bson:"id"`
	Number     int       `bson:"number"`
	Name       string    `bson:"name"`
	Status     string    `bson:"status"`
	InputText  string    `bson:"input_text,omitempty"`
	OutputText string    `bson:"output_text,omitempty"`
	OutputJSON string    `bson:"output_json,omitempty"`
	RetryCount int       `bson:"retry_count"`
	TokensUsed int       `bson:"tokens_used"`
	DurationMS int64     `bson:"duration_ms"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at,omitempty"`
}

// NewMongoStore connects to MongoDB and ensures indexes.
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	store := &MongoStore{
		client:      client,
		db:          db,
		runs:        db.Collection("consultation_runs"),
		comparisons: db.Collection("comparison_records"),
	}
	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "case_id", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.comparisons.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "case_id", Value: 1}},
	})
	return err
}

// SaveRun upserts the run document, preserving embedded passes.
func (s *MongoStore) SaveRun(ctx context.Context, run *consult.ConsultationRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("save run: %w: run id is required", apperrors.ErrInvalidInput)
	}
	update := bson.M{
		"$set": bson.M{
			"case_id":           run.Request.CaseID,
			"title":             run.Request.Title,
			"description":       run.Request.Description,
			"status":            string(run.Status),
			"passes_completed":  run.PassesCompleted,
			"failed_at_pass":    run.FailedAtPass,
			"result":            run.Result,
			"confidence":        run.Confidence,
			"scholar_flag":      run.ScholarFlag,
			"fallback_used":     run.FallbackUsed,
			"fallback_reason":   run.FallbackReason,
			"total_duration_ms": run.TotalDuration.Milliseconds(),
			"total_tokens":      run.TotalTokens,
			"updated_at":        run.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": run.CreatedAt,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.runs.UpdateByID(ctx, run.ID, update, opts); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SavePass upserts one embedded pass, keyed by pass number within the run.
func (s *MongoStore) SavePass(ctx context.Context, pass *consult.PassRecord) error {
	if pass == nil || pass.RunID == "" {
		return fmt.Errorf("save pass: %w: run id is required", apperrors.ErrInvalidInput)
	}
	doc := mongoPass{
		ID:         pass.ID,
		Number:     int(pass.Number),
		Name:       pass.Name,
		Status:     string(pass.Status),
		InputText:  pass.InputText,
		OutputText: pass.OutputText,
		OutputJSON: pass.OutputJSON,
		RetryCount: pass.RetryCount,
		TokensUsed: pass.TokensUsed,
		DurationMS: pass.Duration.Milliseconds(),
		StartedAt:  pass.StartedAt,
		FinishedAt: pass.FinishedAt,
	}

	// Replace an existing pass with the same number, else push.
	result, err := s.runs.UpdateOne(ctx,
		bson.M{"_id": pass.RunID, "passes.number": doc.Number},
		bson.M{"$set": bson.M{"passes.$": doc}},
	)
	if err != nil {
		return fmt.Errorf("failed to update pass: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	result, err = s.runs.UpdateOne(ctx,
		bson.M{"_id": pass.RunID},
		bson.M{"$push": bson.M{"passes": doc}},
	)
	if err != nil {
		return fmt.Errorf("failed to append pass: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("save pass: run %s: %w", pass.RunID, apperrors.ErrNotFound)
	}
	return nil
}

// GetRun loads a run and its embedded passes.
func (s *MongoStore) GetRun(ctx context.Context, id string) (*consult.ConsultationRun, error) {
	var doc mongoRun
	err := s.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get run %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run := &consult.ConsultationRun{
		ID: doc.ID,
		Request: consult.ConsultationRequest{
			CaseID:      doc.CaseID,
			Title:       doc.Title,
			Description: doc.Description,
		},
		Status:          consult.RunStatus(doc.Status),
		PassesCompleted: doc.PassesCompleted,
		FailedAtPass:    doc.FailedAtPass,
		Result:          doc.Result,
		Confidence:      doc.Confidence,
		ScholarFlag:     doc.ScholarFlag,
		FallbackUsed:    doc.FallbackUsed,
		FallbackReason:  doc.FallbackReason,
		TotalDuration:   time.Duration(doc.TotalDurationMS) * time.Millisecond,
		TotalTokens:     doc.TotalTokens,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, p := range doc.Passes {
		run.Passes = append(run.Passes, &consult.PassRecord{
			ID:         p.ID,
			RunID:      doc.ID,
			Number:     consult.PassNumber(p.Number),
			Name:       p.Name,
			Status:     consult.PassStatus(p.Status),
			InputText:  p.InputText,
			OutputText: p.OutputText,
			OutputJSON: p.OutputJSON,
			RetryCount: p.RetryCount,
			TokensUsed: p.TokensUsed,
			Duration:   time.Duration(p.DurationMS) * time.Millisecond,
			StartedAt:  p.StartedAt,
			FinishedAt: p.FinishedAt,
		})
	}
	return run, nil
}

// DeleteRun removes the run document; embedded passes go with it.
func (s *MongoStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.runs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete run %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// SaveComparison writes a comparison record.
func (s *MongoStore) SaveComparison(ctx context.Context, rec *consult.ComparisonRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("save comparison: %w: record id is required", apperrors.ErrInvalidInput)
	}
	doc := bson.M{
		"_id":                    rec.ID,
		"case_id":                rec.CaseID,
		"multipass_run_id":       rec.MultipassRunID,
		"multipass_success":      rec.MultipassSuccess,
		"singlepass_success":     rec.SinglepassSuccess,
		"multipass_confidence":   rec.MultipassConfidence,
		"singlepass_confidence":  rec.SinglepassConfidence,
		"multipass_duration_ms":  rec.MultipassDuration.Milliseconds(),
		"singlepass_duration_ms": rec.SinglepassDuration.Milliseconds(),
		"primary_pipeline":       rec.PrimaryPipeline,
		"returned_pipeline":      rec.ReturnedPipeline,
		"created_at":             rec.CreatedAt,
	}
	if _, err := s.comparisons.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}
	return nil
}

// AnnotateComparison attaches review fields to an existing record.
func (s *MongoStore) AnnotateComparison(ctx context.Context, id, reviewedBy, notes string) error {
	result, err := s.comparisons.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"reviewed_by":  reviewedBy,
			"review_notes": notes,
			"reviewed_at":  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to annotate comparison: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("annotate comparison %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// GetComparison loads a comparison record.
func (s *MongoStore) GetComparison(ctx context.Context, id string) (*consult.ComparisonRecord, error) {
	var doc struct {
		ID                   string     `bson:"_id"`
		CaseID               string     `bson:"case_id"`
		MultipassRunID       string     `bson:"multipass_run_id"`
		MultipassSuccess     bool       `bson:"multipass_success"`
		SinglepassSuccess    bool       `bson:"singlepass_success"`
		MultipassConfidence  float64    `bson:"multipass_confidence"`
		SinglepassConfidence float64    `bson:"singlepass_confidence"`
		MultipassDurationMS  int64      `bson:"multipass_duration_ms"`
		SinglepassDurationMS int64      `bson:"singlepass_duration_ms"`
		PrimaryPipeline      string     `bson:"primary_pipeline"`
		ReturnedPipeline     string     `bson:"returned_pipeline"`
		ReviewedBy           string     `bson:"reviewed_by"`
		ReviewNotes          string     `bson:"review_notes"`
		ReviewedAt           *time.Time `bson:"reviewed_at"`
		CreatedAt            time.Time  `bson:"created_at"`
	}
	err := s.comparisons.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get comparison %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}
	rec := &consult.ComparisonRecord{
		ID:                   doc.ID,
		CaseID:               doc.CaseID,
		MultipassRunID:       doc.MultipassRunID,
		MultipassSuccess:     doc.MultipassSuccess,
		SinglepassSuccess:    doc.SinglepassSuccess,
		MultipassConfidence:  doc.MultipassConfidence,
		SinglepassConfidence: doc.SinglepassConfidence,
		MultipassDuration:    time.Duration(doc.MultipassDurationMS) * time.Millisecond,
		SinglepassDuration:   time.Duration(doc.SinglepassDurationMS) * time.Millisecond,
		PrimaryPipeline:      doc.PrimaryPipeline,
		ReturnedPipeline:     doc.ReturnedPipeline,
		ReviewedBy:           doc.ReviewedBy,
		ReviewNotes:          doc.ReviewNotes,
		ReviewedAt:           doc.ReviewedAt,
		CreatedAt:            doc.CreatedAt,
	}
	rec.ConfidenceDiff = rec.MultipassConfidence - rec.SinglepassConfidence
	rec.DurationDiff = rec.MultipassDuration - rec.SinglepassDuration
	return rec, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
