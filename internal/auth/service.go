package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/config"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// verifyTokenBytes is the number of random bytes used to generate email verification tokens: 32 bytes yields 64 hex
// characters and 256 bits of entropy.
const verifyTokenBytes = 32

// maxLoginAttempts and loginAttemptWindow implement the 5/15min throttle named in spec.md's C3 description.
const (
	maxLoginAttempts   = 5
	loginAttemptWindow = 15 * time.Minute
)

// Sender sends transactional emails such as verification messages. Implementations must be safe for concurrent use.
type Sender interface {
	SendVerification(ctx context.Context, to, token, frontendBaseURL string) error
}

// userStore is the slice of store.UserRepository the Service needs. A narrow interface, rather than the concrete
// type, so unit tests can swap in an in-memory fake instead of a live DynamoDB table.
type userStore interface {
	Create(ctx context.Context, u store.User) error
	Get(ctx context.Context, userID string) (store.User, error)
	Update(ctx context.Context, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	RecordAttempt(ctx context.Context, userID, sourceIP string, succeeded bool, now time.Time) error
	CountRecentAttempts(ctx context.Context, userID string, since time.Time) (int, error)
}

// Service implements the Identity Service (C3): Signup, VerifyEmail, Login, LoginFederated, Renew, Logout,
// GetProfile, UpdateProfile.
type Service struct {
	users      userStore
	authorizer *Authorizer
	rdb        *redis.Client
	cfg        *config.Config
	sender     Sender
	log        zerolog.Logger
	// dummyHash keeps login timing constant when a user is not found, so response-time analysis cannot be used to
	// enumerate registered emails.
	dummyHash string
}

func NewService(users *store.UserRepository, authorizer *Authorizer, rdb *redis.Client, cfg *config.Config, sender Sender, logger zerolog.Logger) (*Service, error) {
	dummy, err := HashPassword("core-service-dummy-password", cfg.Argon2Memory, cfg.Argon2Iterations, cfg.Argon2Parallelism, cfg.Argon2SaltLength, cfg.Argon2KeyLength)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &Service{
		users:      users,
		authorizer: authorizer,
		rdb:        rdb,
		cfg:        cfg,
		sender:     sender,
		log:        logger,
		dummyHash:  dummy,
	}, nil
}

// SignupRequest is the input for Service.Signup.
type SignupRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// TokenPair is the output of any flow that issues fresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Signup validates the inputs, creates the user profile row, and issues tokens. The account starts unverified until
// VerifyEmail consumes the emailed token; no operation in this package checks EmailVerified before proceeding.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (store.User, TokenPair, error) {
	email, _, err := ValidateEmail(req.Email)
	if err != nil {
		return store.User{}, TokenPair{}, translateAuthError(err)
	}
	if err := ValidatePassword(req.Password); err != nil {
		return store.User{}, TokenPair{}, translateAuthError(err)
	}

	hash, err := HashPassword(req.Password, s.cfg.Argon2Memory, s.cfg.Argon2Iterations, s.cfg.Argon2Parallelism, s.cfg.Argon2SaltLength, s.cfg.Argon2KeyLength)
	if err != nil {
		return store.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := store.User{
		UserID:       emailUserID(email),
		Email:        email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Tier:         "default",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return store.User{}, TokenPair{}, translateAuthError(ErrEmailAlreadyTaken)
		}
		return store.User{}, TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	verifyToken, err := generateSecureToken(verifyTokenBytes)
	if err != nil {
		return store.User{}, TokenPair{}, fmt.Errorf("generate verification token: %w", err)
	}
	if err := s.storeVerificationToken(ctx, u.UserID, verifyToken); err != nil {
		s.log.Warn().Err(err).Str("user_id", u.UserID).Msg("failed to store email verification token")
	} else if s.sender != nil {
		if err := s.sender.SendVerification(ctx, email, verifyToken, s.cfg.FrontendBaseURL); err != nil {
			s.log.Error().Err(err).Str("user_id", u.UserID).Msg("failed to send verification email")
		}
	}

	tokens, err := s.issueTokens(ctx, u)
	if err != nil {
		return store.User{}, TokenPair{}, err
	}
	return u, tokens, nil
}

// verificationKey namespaces email-verification tokens in Valkey, separate from refresh tokens.
func verificationKey(token string) string { return "verify:" + token }

func (s *Service) storeVerificationToken(ctx context.Context, userID, token string) error {
	return s.rdb.Set(ctx, verificationKey(token), userID, 24*time.Hour).Err()
}

// VerifyEmail consumes a verification token and marks the user's profile as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.rdb.GetDel(ctx, verificationKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return translateAuthError(ErrInvalidToken)
		}
		return fmt.Errorf("get verification token: %w", err)
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for verification: %w", err)
	}
	if u.EmailVerified {
		return translateAuthError(ErrEmailAlreadyVerified)
	}

	return store.WithRetry(ctx, func() error {
		u, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}
		return s.users.Update(ctx, userID, u.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET emailVerified = :v, updatedAt = :u", nil, map[string]any{
				":v": true,
				":u": time.Now().UTC(),
			}, nil
		})
	})
}

// LoginRequest is the input for Service.Login.
type LoginRequest struct {
	Email    string
	Password string
	SourceIP string
}

// Login verifies credentials against the stored Argon2id hash, applying the login-attempt throttle, and issues
// tokens on success.
func (s *Service) Login(ctx context.Context, req LoginRequest) (store.User, TokenPair, error) {
	email, _, err := ValidateEmail(req.Email)
	if err != nil {
		return store.User{}, TokenPair{}, translateAuthError(ErrInvalidCredentials)
	}

	u, err := s.findByEmail(ctx, email)
	if err != nil {
		return store.User{}, TokenPair{}, fmt.Errorf("find user by email: %w", err)
	}

	if u.UserID == "" {
		// Always runs Argon2id against a real hash, even for a nonexistent user, so response timing does not leak
		// whether the email is registered.
		_, _ = VerifyPassword(req.Password, s.dummyHash)
		return store.User{}, TokenPair{}, translateAuthError(ErrInvalidCredentials)
	}

	if locked, lockErr := s.isLocked(ctx, u.UserID, req.SourceIP); lockErr != nil {
		return store.User{}, TokenPair{}, lockErr
	} else if locked {
		return store.User{}, TokenPair{}, translateAuthError(ErrAccountLocked)
	}

	match, err := VerifyPassword(req.Password, u.PasswordHash)
	if err != nil {
		return store.User{}, TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		_ = s.users.RecordAttempt(ctx, u.UserID, req.SourceIP, false, time.Now().UTC())
		return store.User{}, TokenPair{}, translateAuthError(ErrInvalidCredentials)
	}

	if needsRehash := NeedsRehash(u.PasswordHash, s.cfg.Argon2Memory, s.cfg.Argon2Iterations, s.cfg.Argon2Parallelism, s.cfg.Argon2SaltLength, s.cfg.Argon2KeyLength); needsRehash {
		if newHash, hashErr := HashPassword(req.Password, s.cfg.Argon2Memory, s.cfg.Argon2Iterations, s.cfg.Argon2Parallelism, s.cfg.Argon2SaltLength, s.cfg.Argon2KeyLength); hashErr == nil {
			_ = store.WithRetry(ctx, func() error {
				current, getErr := s.users.Get(ctx, u.UserID)
				if getErr != nil {
					return getErr
				}
				return s.users.Update(ctx, u.UserID, current.Version, func() (string, map[string]string, map[string]any, error) {
					return "SET passwordHash = :h, updatedAt = :u", nil, map[string]any{
						":h": newHash,
						":u": time.Now().UTC(),
					}, nil
				})
			})
		}
	}

	_ = s.users.RecordAttempt(ctx, u.UserID, req.SourceIP, true, time.Now().UTC())

	tokens, err := s.issueTokens(ctx, u)
	if err != nil {
		return store.User{}, TokenPair{}, err
	}
	return u, tokens, nil
}

// LoginFederated exchanges a verified federated-identity subject (already authenticated upstream by an identity
// provider whose JWKS this service trusts) for local platform tokens, creating the profile on first sight.
func (s *Service) LoginFederated(ctx context.Context, federatedSubject, email, displayName string) (store.User, TokenPair, error) {
	u, err := s.users.Get(ctx, federatedSubject)
	if err == nil {
		tokens, err := s.issueTokens(ctx, u)
		return u, tokens, err
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, TokenPair{}, fmt.Errorf("get federated user: %w", err)
	}

	now := time.Now().UTC()
	u = store.User{
		UserID:        federatedSubject,
		Email:         email,
		DisplayName:   displayName,
		Federated:     true,
		EmailVerified: true,
		Tier:          "default",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if createErr := s.users.Create(ctx, u); createErr != nil && !errors.Is(createErr, store.ErrVersionConflict) {
		return store.User{}, TokenPair{}, fmt.Errorf("create federated user: %w", createErr)
	}

	tokens, err := s.issueTokens(ctx, u)
	return u, tokens, err
}

// Renew rotates a refresh token and issues a fresh access token.
func (s *Service) Renew(ctx context.Context, refreshToken string) (TokenPair, error) {
	newRefresh, userID, err := RotateRefreshToken(ctx, s.rdb, refreshToken, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, translateAuthError(err)
	}

	u, err := s.users.Get(ctx, userID.String())
	if err != nil {
		return TokenPair{}, fmt.Errorf("get user for renew: %w", err)
	}

	accessToken, err := NewAccessToken(userID, s.jwtSecret(), s.cfg.AccessTokenTTL, s.cfg.JWTIssuer, s.cfg.JWTAudience, u.Tier)
	if err != nil {
		return TokenPair{}, fmt.Errorf("create access token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

// Logout revokes the presented access token's jti and all of the user's refresh tokens.
func (s *Service) Logout(ctx context.Context, principal Principal, accessToken string) error {
	claims, err := ValidateAccessToken(accessToken, s.jwtSecret(), s.cfg.JWTIssuer, s.cfg.JWTAudience)
	if err == nil && claims.ID != "" {
		if revokeErr := s.authorizer.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); revokeErr != nil {
			s.log.Warn().Err(revokeErr).Msg("failed to revoke access token on logout")
		}
	}
	if err := RevokeAllRefreshTokens(ctx, s.rdb, principal.UserID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// GetProfile returns the profile row for a user.
func (s *Service) GetProfile(ctx context.Context, userID string) (store.User, error) {
	return s.users.Get(ctx, userID)
}

// UpdateProfileRequest is the input for Service.UpdateProfile; zero-value fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName string
	AvatarKey   string
}

// maxDisplayNameLength bounds UpdateProfile's displayName field per the edge gateway's input contract.
const maxDisplayNameLength = 100

// UpdateProfile applies a partial update to the user's profile via the optimistic-concurrency retry loop.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (store.User, error) {
	var verrs validation.Errors
	if req.DisplayName != "" {
		verrs.MaxLength("displayName", req.DisplayName, maxDisplayNameLength)
	}
	if err := verrs.Err("profile update is invalid"); err != nil {
		return store.User{}, err
	}

	var updated store.User
	err := store.WithRetry(ctx, func() error {
		current, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}

		displayName := current.DisplayName
		if req.DisplayName != "" {
			displayName = validation.Sanitize(req.DisplayName)
		}
		avatarKey := current.AvatarKey
		if req.AvatarKey != "" {
			avatarKey = req.AvatarKey
		}

		err = s.users.Update(ctx, userID, current.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET displayName = :d, avatarKey = :a, updatedAt = :u", nil, map[string]any{
				":d": displayName,
				":a": avatarKey,
				":u": time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return err
		}

		updated = current
		updated.DisplayName = displayName
		updated.AvatarKey = avatarKey
		return nil
	})
	return updated, err
}

// findByEmail resolves a user's profile row directly by the deterministic id Signup assigned it (see emailUserID),
// without a secondary index or table scan. A missing user is not an error here: it returns a zero-value User so
// Login can still run the dummy password hash and keep response timing constant.
func (s *Service) findByEmail(ctx context.Context, email string) (store.User, error) {
	u, err := s.users.Get(ctx, emailUserID(email))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, nil
	}
	return u, err
}

// emailUserID derives a stable, name-based (SHA-1) UUID from a normalized email so Login can fetch the profile row
// directly by key instead of scanning. Signup assigns this same id rather than a random UUID, so the two stay
// consistent.
func emailUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("email:"+email)).String()
}

func (s *Service) isLocked(ctx context.Context, userID, sourceIP string) (bool, error) {
	count, err := s.users.CountRecentAttempts(ctx, userID, time.Now().Add(-loginAttemptWindow))
	if err != nil {
		return false, fmt.Errorf("count login attempts: %w", err)
	}
	return count >= maxLoginAttempts, nil
}

func (s *Service) issueTokens(ctx context.Context, u store.User) (TokenPair, error) {
	userID, err := uuid.Parse(u.UserID)
	if err != nil {
		// Federated subjects need not be UUIDs; for those, a deterministic UUID derived from the subject string is used
		// as the JWT subject and the refresh-token owner.
		userID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(u.UserID))
	}

	accessToken, err := NewAccessToken(userID, s.jwtSecret(), s.cfg.AccessTokenTTL, s.cfg.JWTIssuer, s.cfg.JWTAudience, u.Tier)
	if err != nil {
		return TokenPair{}, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := CreateRefreshToken(ctx, s.rdb, userID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("create refresh token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) jwtSecret() string { return s.cfg.JWTSecretParam }

// translateAuthError maps the package's sentinel errors to their apierrors kind, the single boundary where a bare
// sentinel becomes the structured error httputil.HandleError expects. Errors already wrapped (apierrors.Error,
// store errors, fmt.Errorf-wrapped dependency failures) pass through unchanged.
func translateAuthError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrUsernameLength), errors.Is(err, ErrUsernameInvalidChars),
		errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong), errors.Is(err, ErrInvalidToken):
		return apierrors.Wrap(apierrors.ValidationFailed, err.Error(), err)
	case errors.Is(err, ErrInvalidCredentials):
		return apierrors.Wrap(apierrors.AuthClaims, err.Error(), err)
	case errors.Is(err, ErrAccountLocked):
		return apierrors.Wrap(apierrors.AuthLocked, err.Error(), err)
	case errors.Is(err, ErrEmailAlreadyTaken), errors.Is(err, ErrEmailAlreadyVerified):
		return apierrors.Wrap(apierrors.ConflictState, err.Error(), err)
	case errors.Is(err, ErrRefreshTokenReused), errors.Is(err, ErrRefreshTokenNotFound), errors.Is(err, ErrTokenRevoked):
		return apierrors.Wrap(apierrors.AuthRevoked, err.Error(), err)
	default:
		return err
	}
}

func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
