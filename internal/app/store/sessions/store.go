// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// How a session came to exist.
const (
	CreatedByToken = "token" // bearer token exchanged at POST /login
)

// Why a session ended.
const (
	EndLogout   = "logout"
	EndInactive = "inactive"
	EndReplaced = "replaced" // superseded by a newer login of the same subject
)

// ErrNotActive is returned when a session does not exist or has been closed.
var ErrNotActive = errors.New("session not active")

// Session is one signed-in period of a subject. Subject is the user id
// carried in the auth service's token; topaz keeps no user records of its own.
type Session struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Subject string             `bson:"subject"`
	Name    string             `bson:"name,omitempty"`

	LoginAt      time.Time  `bson:"login_at"`
	LogoutAt     *time.Time `bson:"logout_at,omitempty"`
	LastActiveAt time.Time  `bson:"last_active_at"`

	// Last path rendered for this session.
	CurrentPage string `bson:"current_page,omitempty"`

	CreatedBy string `bson:"created_by,omitempty"`
	EndReason string `bson:"end_reason,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	DurationSecs int64 `bson:"duration_secs,omitempty"`
}

// Active reports whether the session is still open.
func (s Session) Active() bool { return s.LogoutAt == nil }

// Store persists sessions in the "sessions" collection.
type Store struct {
	c *mongo.Collection
}

// New creates a sessions Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// EnsureIndexes creates the indexes the store's queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// open sessions by recency (cleanup sweep)
		{
			Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_active_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_active"),
		},
		// history per subject
		{
			Keys:    bson.D{{Key: "subject", Value: 1}, {Key: "login_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_subject"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// closeStage is an update pipeline stage that closes a session at `at`
// and records its length in seconds.
func closeStage(at any, reason string) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "logout_at", Value: at},
		{Key: "end_reason", Value: reason},
		{Key: "duration_secs", Value: bson.D{{Key: "$toLong", Value: bson.D{{Key: "$divide", Value: bson.A{
			bson.D{{Key: "$subtract", Value: bson.A{at, "$login_at"}}},
			1000,
		}}}}}},
	}}}
}

// Create opens a new session for subject. Any session the subject still has
// open is closed first with EndReplaced.
func (s *Store) Create(ctx context.Context, subject, name, ip, userAgent, createdBy string) (Session, error) {
	now := time.Now().UTC()

	if _, err := s.c.UpdateMany(ctx,
		bson.M{"subject": subject, "logout_at": nil},
		mongo.Pipeline{closeStage(now, EndReplaced)},
	); err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:           primitive.NewObjectID(),
		Subject:      subject,
		Name:         name,
		LoginAt:      now,
		LastActiveAt: now,
		CreatedBy:    createdBy,
		IP:           ip,
		UserAgent:    userAgent,
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Close ends an open session. Closing an already closed or unknown session
// returns ErrNotActive.
func (s *Store) Close(ctx context.Context, sessionID primitive.ObjectID, reason string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": sessionID, "logout_at": nil},
		mongo.Pipeline{closeStage(time.Now().UTC(), reason)},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotActive
	}
	return nil
}

// TouchResult reports what Touch changed.
type TouchResult struct {
	Updated      bool
	PreviousPage string
}

// Touch records activity on an open session and, when page is not empty,
// the page now being shown. Closed sessions are left alone.
func (s *Store) Touch(ctx context.Context, sessionID primitive.ObjectID, page string) (TouchResult, error) {
	set := bson.M{"last_active_at": time.Now().UTC()}
	if page != "" {
		set["current_page"] = page
	}

	var before struct {
		CurrentPage string `bson:"current_page"`
	}
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID, "logout_at": nil},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return TouchResult{}, nil
	}
	if err != nil {
		return TouchResult{}, err
	}
	return TouchResult{Updated: true, PreviousPage: before.CurrentPage}, nil
}

// GetByID returns a session, open or closed.
func (s *Store) GetByID(ctx context.Context, sessionID primitive.ObjectID) (Session, error) {
	var sess Session
	err := s.c.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&sess)
	return sess, err
}

// Active returns the open session with the given hex id, or ErrNotActive.
func (s *Store) Active(ctx context.Context, hexID string) (Session, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return Session{}, ErrNotActive
	}
	var sess Session
	err = s.c.FindOne(ctx, bson.M{"_id": id, "logout_at": nil}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Session{}, ErrNotActive
	}
	return sess, err
}

// IsActive reports whether hexID names an open session.
func (s *Store) IsActive(ctx context.Context, hexID string) (bool, error) {
	_, err := s.Active(ctx, hexID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotActive):
		return false, nil
	default:
		return false, err
	}
}

// CloseInactive closes every open session idle for longer than threshold.
// The logout time is the last recorded activity, not the time of the sweep.
func (s *Store) CloseInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	res, err := s.c.UpdateMany(ctx,
		bson.M{"logout_at": nil, "last_active_at": bson.M{"$lt": cutoff}},
		mongo.Pipeline{closeStage("$last_active_at", EndInactive)},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
