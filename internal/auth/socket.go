package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/internal/realtime"
)

// UserFinder loads a user by id.
type UserFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var errSocketBlocked = errors.New("user is blocked")

// SocketAuthenticator validates a handshake token and loads the user it names.
func SocketAuthenticator(jwt *JWTService, users UserFinder) realtime.AuthFunc {
	return func(ctx context.Context, token string) (realtime.Identity, error) {
		claims, err := jwt.Validate(token)
		if err != nil {
			return realtime.Identity{}, err
		}
		user, err := users.GetByID(ctx, claims.UserID)
		if err != nil {
			return realtime.Identity{}, err
		}
		if user.IsBlocked {
			return realtime.Identity{}, errSocketBlocked
		}
		return realtime.Identity{UserID: user.ID, Name: user.Name, Role: string(user.Role)}, nil
	}
}
