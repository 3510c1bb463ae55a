package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
	"github.com/rishabhxchoudhary/fractal/pkg/repository"
)

const (
	refreshTokenLen = 32

	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	JWTSecret       []byte
	Issuer          string
}

// SessionService is the single entry point for session issuance and
// validation; every auth method funnels through IssueSession.
type SessionService struct {
	config   SessionConfig
	sessions *repository.SessionsRepository
	users    *repository.UsersRepository
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, sessions *repository.SessionsRepository, users *repository.UsersRepository) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &SessionService{
		config:   config,
		sessions: sessions,
		users:    users,
	}
}

// AccessTokenTTL returns the access token TTL.
func (s *SessionService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (s *SessionService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

// IssueSessionOpts holds options for session issuance.
type IssueSessionOpts struct {
	IP        string
	UserAgent string
	// ActiveWorkspaceID pre-selects the workspace the session acts in;
	// nil when the user has no workspaces yet.
	ActiveWorkspaceID *uuid.UUID
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IssueSession creates a new session and returns access/refresh tokens.
func (s *SessionService) IssueSession(ctx context.Context, userID uuid.UUID, opts IssueSessionOpts) (*domain.TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Refresh token is opaque and stored hashed.
	refreshToken, err := GenerateToken(refreshTokenLen)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	session := &domain.Session{
		ID:                sessionID,
		UserID:            userID,
		TokenHash:         HashToken(refreshToken),
		ActiveWorkspaceID: opts.ActiveWorkspaceID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.config.RefreshTokenTTL),
	}

	if opts.IP != "" || opts.UserAgent != "" {
		metadata, _ := json.Marshal(domain.SessionMetadata{
			IP:        opts.IP,
			UserAgent: opts.UserAgent,
		})
		session.Metadata = metadata
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return s.signAccessToken(user, sessionID, refreshToken, now)
}

// RefreshSession exchanges a valid refresh token for a fresh access token.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, err
	}

	if !session.IsValid() {
		if session.RevokedAt != nil {
			return nil, domain.ErrSessionRevoked
		}
		return nil, domain.ErrSessionExpired
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID)

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return s.signAccessToken(user, session.ID, refreshToken, time.Now())
}

// SetActiveWorkspace moves the session's active-workspace pointer. The
// caller is responsible for having verified membership first.
func (s *SessionService) SetActiveWorkspace(ctx context.Context, sessionID uuid.UUID, workspaceID *uuid.UUID) error {
	return s.sessions.SetActiveWorkspace(ctx, sessionID, workspaceID)
}

// GetSession retrieves a session by ID.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// RevokeSession revokes a session by refresh token.
func (s *SessionService) RevokeSession(ctx context.Context, refreshToken string) error {
	return s.sessions.RevokeByTokenHash(ctx, HashToken(refreshToken))
}

// RevokeAllSessions revokes all sessions for a user.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUserID(ctx, userID)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *SessionService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

func (s *SessionService) signAccessToken(user *domain.User, sessionID uuid.UUID, refreshToken string, now time.Time) (*domain.TokenPair, error) {
	expiry := now.Add(s.config.AccessTokenTTL)
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Issuer:    s.config.Issuer,
			ID:        sessionID.String(),
		},
		Email: user.Email,
		Name:  user.FullName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    expiry,
	}, nil
}
