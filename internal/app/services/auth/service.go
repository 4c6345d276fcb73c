package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/metrics"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage"
	"github.com/domu-platform/domu/internal/config"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/platform/mailer"
	"github.com/domu-platform/domu/pkg/logger"
)

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 10

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// Claims is the JWT payload. The subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  int64  `json:"role"`
	jwt.RegisteredClaims
}

// Service handles registration, login, confirmation and password resets.
type Service struct {
	users     storage.UserStore
	tokens    storage.TokenStore
	buildings *buildings.Service
	mail      mailer.Mailer
	cfg       config.AuthConfig
	frontend  string
	log       *logger.Logger
	now       func() time.Time
}

// New constructs an auth service. frontendURL prefixes links in mails.
func New(users storage.UserStore, tokens storage.TokenStore, b *buildings.Service, mail mailer.Mailer, cfg config.AuthConfig, frontendURL string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if mail == nil {
		mail = mailer.NewLogMailer(log)
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ConfirmTTL <= 0 {
		cfg.ConfirmTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		buildings: b,
		mail:      mail,
		cfg:       cfg,
		frontend:  strings.TrimRight(frontendURL, "/"),
		log:       log,
		now:       time.Now,
	}
}

// RegisterInput is the public sign-up payload.
type RegisterInput struct {
	FirstName      string
	LastName       string
	Phone          string
	DocumentNumber string
	Email          string
	Password       string
	RoleID         int64
	UnitID         *int64
	BirthDate      *time.Time
	Resident       bool
}

// Session is returned after a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

// Profile is a user with the buildings they can act in.
type Profile struct {
	user.User
	buildings.Membership
}

// Register creates an active account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	phone := strings.TrimSpace(in.Phone)
	document := strings.TrimSpace(in.DocumentNumber)
	if first == "" || last == "" {
		return user.User{}, apperrors.Validation("first and last name are required")
	}
	if phone == "" || document == "" {
		return user.User{}, apperrors.Validation("phone and document number are required")
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return user.User{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return user.User{}, err
	}
	role := in.RoleID
	if role == 0 {
		role = user.RoleResident
	}
	if role < user.RoleAdmin || role > user.RoleStaff {
		return user.User{}, apperrors.Validation("unknown role %d", role)
	}
	if role == user.RoleAdmin && in.UnitID == nil {
		return user.User{}, apperrors.Validation("administrators must provide a unit")
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.CreateUser(ctx, user.User{
		UnitID:         in.UnitID,
		RoleID:         role,
		FirstName:      first,
		LastName:       last,
		BirthDate:      in.BirthDate,
		Email:          email,
		Phone:          phone,
		DocumentNumber: document,
		Resident:       in.Resident,
		PasswordHash:   hash,
		Status:         user.StatusActive,
	})
	if err != nil {
		if svcErr := apperrors.GetServiceError(err); svcErr != nil && svcErr.Code == apperrors.CodeConflict {
			return user.User{}, apperrors.Conflict("email already registered")
		}
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).
		WithField("role_id", u.RoleID).
		Info("user registered")
	return u, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.IsNotFound(err) {
			metrics.RecordLogin(false)
			return Session{}, apperrors.Unauthorized("invalid credentials")
		}
		return Session{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		metrics.RecordLogin(false)
		return Session{}, apperrors.Unauthorized("invalid credentials")
	}
	if u.Status != user.StatusActive {
		metrics.RecordLogin(false)
		return Session{}, apperrors.Unauthorized("account is not active")
	}

	token, expires, err := s.IssueToken(u)
	if err != nil {
		return Session{}, err
	}
	profile, err := s.Profile(ctx, u)
	if err != nil {
		return Session{}, err
	}
	metrics.RecordLogin(true)
	s.log.WithField("user_id", u.ID).Info("user logged in")
	return Session{Token: token, ExpiresAt: expires, User: profile}, nil
}

// Profile attaches building membership to the user.
func (s *Service) Profile(ctx context.Context, u user.User) (Profile, error) {
	p := Profile{User: u}
	if s.buildings == nil {
		return p, nil
	}
	m, err := s.buildings.Membership(ctx, u)
	if err != nil {
		return Profile{}, err
	}
	p.Membership = m
	return p, nil
}

// IssueToken signs an HS256 JWT for the user.
func (s *Service) IssueToken(u user.User) (string, time.Time, error) {
	now := s.now().UTC()
	expires := now.Add(s.cfg.TokenTTL)
	claims := Claims{
		Email: u.Email,
		Role:  u.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.JWTIssuer,
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, apperrors.Internal("could not issue token", err)
	}
	return signed, expires, nil
}

// ParseToken validates signature, algorithm and expiry.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.JWTIssuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, apperrors.InvalidToken(nil)
	}
	return claims, nil
}

// Authenticate resolves a bearer token to its active user.
func (s *Service) Authenticate(ctx context.Context, raw string) (user.User, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return user.User{}, err
	}
	var id int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil || id <= 0 {
		return user.User{}, apperrors.InvalidToken(err)
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return user.User{}, apperrors.InvalidToken(err)
		}
		return user.User{}, err
	}
	if u.Status == user.StatusInactive {
		return user.User{}, apperrors.Unauthorized("account is not active")
	}
	return u, nil
}

// Invite issues a confirmation token and mails the activation link.
func (s *Service) Invite(ctx context.Context, u user.User) error {
	tok, err := s.createToken(ctx, u.ID, user.TokenConfirmation, s.cfg.ConfirmTTL)
	if err != nil {
		return err
	}
	link := s.frontend + "/confirm?token=" + tok.Value
	return s.mail.Send(ctx, mailer.Message{
		To:      u.Email,
		Subject: "Bienvenido a Domu",
		Body:    fmt.Sprintf("Hola %s,\n\nActiva tu cuenta en el siguiente enlace:\n%s\n", u.FirstName, link),
	})
}

// Confirm activates an invited account, optionally setting its password.
func (s *Service) Confirm(ctx context.Context, token, password string) (user.User, error) {
	tok, err := s.usableToken(ctx, user.TokenConfirmation, token)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.GetUser(ctx, tok.UserID)
	if err != nil {
		return user.User{}, apperrors.FromStore(err, "user not found")
	}
	if password != "" {
		if err := ValidatePassword(password); err != nil {
			return user.User{}, err
		}
		hash, err := s.HashPassword(password)
		if err != nil {
			return user.User{}, err
		}
		u.PasswordHash = hash
	}
	u.Status = user.StatusActive
	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	if err := s.tokens.MarkTokenUsed(ctx, tok.ID, s.now()); err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("account confirmed")
	return u, nil
}

// RequestPasswordReset mails a reset link. Unknown emails succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	tok, err := s.createToken(ctx, u.ID, user.TokenPasswordReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	link := s.frontend + "/reset-password?token=" + tok.Value
	if err := s.mail.Send(ctx, mailer.Message{
		To:      u.Email,
		Subject: "Restablecer contraseña",
		Body:    fmt.Sprintf("Hola %s,\n\nPara restablecer tu contraseña visita:\n%s\n\nEl enlace vence en %s.\n", u.FirstName, link, s.cfg.ResetTokenTTL),
	}); err != nil {
		return err
	}
	s.log.WithField("user_id", u.ID).Info("password reset requested")
	return nil
}

// ResetPassword consumes a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	tok, err := s.usableToken(ctx, user.TokenPasswordReset, token)
	if err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, tok.UserID)
	if err != nil {
		return apperrors.FromStore(err, "user not found")
	}
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	if err := s.tokens.MarkTokenUsed(ctx, tok.ID, s.now()); err != nil {
		return err
	}
	s.log.WithField("user_id", u.ID).Info("password reset")
	return nil
}

func (s *Service) createToken(ctx context.Context, userID int64, kind user.TokenKind, ttl time.Duration) (user.Token, error) {
	now := s.now().UTC()
	return s.tokens.CreateToken(ctx, user.Token{
		UserID:    userID,
		Kind:      kind,
		Value:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	})
}

func (s *Service) usableToken(ctx context.Context, kind user.TokenKind, value string) (user.Token, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return user.Token{}, apperrors.Validation("token is required")
	}
	tok, err := s.tokens.GetToken(ctx, kind, value)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return user.Token{}, apperrors.Validation("invalid token")
		}
		return user.Token{}, err
	}
	if tok.UsedAt != nil {
		return user.Token{}, apperrors.Validation("token already used")
	}
	if !s.now().Before(tok.ExpiresAt) {
		return user.Token{}, apperrors.Validation("token expired")
	}
	return tok, nil
}

// HashPassword hashes with the configured bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", apperrors.Internal("could not hash password", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password with its hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.Validation("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// NormalizeEmail trims, validates and lower-cases an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return "", apperrors.Validation("invalid email address")
	}
	return strings.ToLower(email), nil
}

// RandomPassword returns a throwaway password for invited accounts.
func RandomPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
