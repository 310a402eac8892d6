package repo

import (
	"context"

	"Chatline/internal/db"
	"Chatline/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserDirectory resolves user ids to public profiles. Unknown ids are simply
// absent from the result.
type UserDirectory interface {
	FindParticipantProfiles(ctx context.Context, ids []string) (map[string]model.Profile, error)
}

type userRepository struct {
	users  *db.Repository[model.User]
	logger *zap.Logger
}

func NewUserRepository(con *mongo.Database, collection string, logger *zap.Logger) UserDirectory {
	return &userRepository{
		users:  db.NewRepository[model.User](con, collection),
		logger: logger,
	}
}

func (r *userRepository) FindParticipantProfiles(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	ids = model.UniqueIDs(ids...)
	if len(ids) == 0 {
		return map[string]model.Profile{}, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	users, err := withRetry(ctx, r.logger, "find_participant_profiles", func(ctx context.Context) ([]model.User, error) {
		return r.users.FindAll(ctx, db.NewFilter().In("user_id", ids).Build())
	})
	if err != nil {
		return nil, translate(r.logger, "find_participant_profiles", err, "")
	}

	profiles := make(map[string]model.Profile, len(users))
	for i := range users {
		profiles[users[i].UserID] = users[i].Profile()
	}
	return profiles, nil
}

// StaticDirectory is an in-memory UserDirectory seeded once at startup.
type StaticDirectory struct {
	profiles map[string]model.Profile
}

func NewStaticDirectory(users []model.User) *StaticDirectory {
	profiles := make(map[string]model.Profile, len(users))
	for i := range users {
		profiles[users[i].UserID] = users[i].Profile()
	}
	return &StaticDirectory{profiles: profiles}
}

func (d *StaticDirectory) FindParticipantProfiles(_ context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
