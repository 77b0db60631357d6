package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/hallfield/homehub-core/internal/auth"
	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/session"
)

// handleLogin authenticates the session, by password or by a previously
// issued token. A fresh token is returned either way so clients can keep
// rolling their reconnect credential forward.
func (d *Dispatcher) handleLogin(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	var user *auth.User
	var err error

	switch {
	case req.Token != "":
		user, err = d.loginWithToken(ctx, req.Token)
	case req.Username != "" && req.Password != "":
		user, err = d.loginWithPassword(ctx, req.Username, req.Password)
	default:
		return nil, fmt.Errorf("%w: username and password, or token", house.ErrMissingParameter)
	}
	if err != nil {
		return nil, err
	}

	houses, err := d.authRepo.ListHouseAccess(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing house access: %w", err)
	}

	token, err := d.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	// Re-login on a live session resets any joined house.
	err = d.sessions.Update(ctx, sess.ID, func(s *session.Session) {
		s.Authenticated = true
		s.UserID = user.ID
		s.Username = user.Username
		s.HouseID = 0
		s.Role = ""
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("user logged in",
		"session_id", sess.ID, "user_id", user.ID, "username", user.Username)

	return successResponse(map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"houses":   houses,
		"token":    token,
	}), nil
}

func (d *Dispatcher) loginWithPassword(ctx context.Context, username, password string) (*auth.User, error) {
	user, err := d.authRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	return user, nil
}

func (d *Dispatcher) loginWithToken(ctx context.Context, token string) (*auth.User, error) {
	userID, _, err := d.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := d.authRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, auth.ErrTokenInvalid
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return user, nil
}

// handleLogout clears the session's identity and house membership. The
// connection stays open for a fresh login.
func (d *Dispatcher) handleLogout(ctx context.Context, sess session.Session) (map[string]any, error) {
	err := d.sessions.Update(ctx, sess.ID, func(s *session.Session) {
		s.Authenticated = false
		s.UserID = 0
		s.Username = ""
		s.HouseID = 0
		s.Role = ""
	})
	if err != nil {
		return nil, err
	}
	return successResponse(nil), nil
}

// handleJoinHouse binds the session to a house the user holds a role
// grant for and returns the full house state. Joining a second house
// replaces the first.
func (d *Dispatcher) handleJoinHouse(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	if req.HouseID == 0 {
		return nil, fmt.Errorf("%w: house_id", house.ErrMissingParameter)
	}

	role, err := d.authRepo.GetRole(ctx, sess.UserID, req.HouseID)
	if err != nil {
		return nil, err
	}

	var name string
	var state house.State
	err = d.cache.Do(ctx, req.HouseID, func(h *house.House) error {
		name = h.Name
		state = h.State()
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = d.sessions.Update(ctx, sess.ID, func(s *session.Session) {
		s.HouseID = req.HouseID
		s.Role = role
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("session joined house",
		"session_id", sess.ID, "user_id", sess.UserID,
		"house_id", req.HouseID, "role", string(role))

	return successResponse(map[string]any{
		"house_id": req.HouseID,
		"name":     name,
		"role":     string(role),
		"state":    state,
	}), nil
}

// handleLeaveHouse detaches the session from its house. The session stays
// authenticated.
func (d *Dispatcher) handleLeaveHouse(ctx context.Context, sess session.Session) (map[string]any, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	err := d.sessions.Update(ctx, sess.ID, func(s *session.Session) {
		s.HouseID = 0
		s.Role = ""
	})
	if err != nil {
		return nil, err
	}
	return successResponse(nil), nil
}
