package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/server/auth"
	"github.com/dmitrijs2005/booklend/internal/server/config"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
)

const sessionTokenBytes = 32

// bcryptCost is a variable so tests can lower it.
var bcryptCost = bcrypt.DefaultCost

// Session is what a successful login hands back to the transport.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type UserService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	logger          logging.Logger
	jwtSecret       []byte
	sessionValidity time.Duration
	now             func() time.Time

	// compared against when the user does not exist, so unknown names cost
	// as much as wrong passwords
	dummyHash []byte
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("booklend-dummy"), bcryptCost)
	return &UserService{
		db:              db,
		repomanager:     m,
		logger:          logger,
		jwtSecret:       []byte(cfg.SecretKey),
		sessionValidity: cfg.SessionValidity,
		now:             func() time.Time { return time.Now().UTC() },
		dummyHash:       dummy,
	}
}

// Register creates a regular account. Self-registration never yields an
// administrator.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.CreateAccount(ctx, in, models.RoleUser)
}

// CreateAccount validates the input and stores a new account with role.
// A taken username or email yields common.ErrConflict and no row is written.
func (s *UserService) CreateAccount(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	in.normalize()
	if err := validateRegister(in); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &ValidationError{Message: "Unknown role.", Fields: map[string]string{"Role": "oneof"}}
	}

	repo := s.repomanager.Users(s.db)

	exists, err := repo.ExistsByUserNameOrEmail(ctx, in.UserName, in.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user: %w", err)
	}
	if exists {
		return nil, common.ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "account created", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

// Login verifies the password and opens a session. Unknown users and wrong
// passwords both yield common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, userName, password string) (*Session, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

func (s *UserService) openSession(ctx context.Context, user *models.User) (*Session, error) {
	sessionToken, err := common.MakeRandHexString(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating session token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.sessionValidity)
	sessions := s.repomanager.Sessions(s.db)

	if n, err := sessions.DeleteExpired(ctx, now); err != nil {
		s.logger.Warn(ctx, "expired session cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Debug(ctx, "expired sessions removed", "count", n)
	}

	if _, err := sessions.Create(ctx, user.ID, sessionToken, expiresAt); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, string(user.Role), sessionToken, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, fmt.Errorf("error signing session token: %w", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Identify resolves a session cookie to the acting identity. The token must
// verify, its session row must exist, belong to the same user and not be
// expired.
func (s *UserService) Identify(ctx context.Context, token string) (policy.Identity, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return policy.Anonymous, err
	}

	session, err := s.repomanager.Sessions(s.db).Find(ctx, claims.SessionToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return policy.Anonymous, common.ErrInvalidToken
		}
		return policy.Anonymous, fmt.Errorf("error loading session: %w", err)
	}
	if session.UserID != claims.UserID {
		return policy.Anonymous, common.ErrInvalidToken
	}
	if session.ExpiresAt.Before(s.now()) {
		return policy.Anonymous, common.ErrSessionExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return policy.Anonymous, common.ErrInvalidToken
		}
		return policy.Anonymous, fmt.Errorf("error loading user: %w", err)
	}

	return policy.ForUser(user), nil
}

// Logout deletes the session behind token. Tokens that no longer verify
// have nothing left to delete.
func (s *UserService) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil
	}
	if err := s.repomanager.Sessions(s.db).Delete(ctx, claims.SessionToken); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", claims.UserID)
	return nil
}
