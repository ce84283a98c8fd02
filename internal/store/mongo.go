package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okdoc/teleconsult/internal/domain"
)

const (
	collDoctors       = "doctors"
	collPatients      = "patients"
	collConsultations = "consultations"
)

// Mongo persists participants and consultations. Participants are upserted by
// id so a re-save after a state flip never conflicts.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info().Str("module", "store.mongo").Str("db", dbName).Msg("connected")
	return &Mongo{client: client, db: client.Database(dbName)}, nil
}

func (m *Mongo) participantColl(role domain.Role) *mongo.Collection {
	if role == domain.RoleDoctor {
		return m.db.Collection(collDoctors)
	}
	return m.db.Collection(collPatients)
}

func (m *Mongo) SaveParticipant(ctx context.Context, p domain.Participant) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.participantColl(p.Role).ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	if err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

func (m *Mongo) UpdateParticipantState(ctx context.Context, id domain.ParticipantID, state domain.State, lastActive time.Time) error {
	update := bson.M{"$set": bson.M{"state": state, "lastActive": lastActive}}
	// Role is unknown at this call site; the id is unique across both
	// collections, so try patients first and fall back to doctors.
	res, err := m.db.Collection(collPatients).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update participant state: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := m.db.Collection(collDoctors).UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
			return fmt.Errorf("update participant state: %w", err)
		}
	}
	return nil
}

func (m *Mongo) CreateConsultation(ctx context.Context, c *domain.Consultation) error {
	if _, err := m.db.Collection(collConsultations).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("create consultation: %w", err)
	}
	return nil
}

func (m *Mongo) AppendMessage(ctx context.Context, id domain.ConsultationID, msg domain.Message) error {
	update := bson.M{"$push": bson.M{"messages": msg}}
	if _, err := m.db.Collection(collConsultations).UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (m *Mongo) SetVideoState(ctx context.Context, id domain.ConsultationID, active bool, startedAt *time.Time) error {
	set := bson.M{"videoCallActive": active}
	if startedAt != nil {
		set["videoCallStartedAt"] = startedAt
	}
	if _, err := m.db.Collection(collConsultations).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("set video state: %w", err)
	}
	return nil
}

func (m *Mongo) UpdateConsultationStatus(ctx context.Context, id domain.ConsultationID, status domain.Status, endedAt *time.Time) error {
	update := bson.M{"$set": bson.M{"status": status, "endedAt": endedAt}}
	if _, err := m.db.Collection(collConsultations).UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("update consultation status: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
