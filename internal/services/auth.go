package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// adminsTable holds administrator accounts with bcrypt password hashes
const adminsTable = "admins"

// Session roles carried in tokens
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Claims represents JWT claims
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates session tokens
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService creates a token service signing with secret
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, issuer: "portfolio-hub"}
}

// HashPassword hashes a password using bcrypt
func (t *TokenService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares hashed password with plain password
func (t *TokenService) CheckPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// GenerateToken generates a signed token for subject
func (t *TokenService) GenerateToken(subject, email, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    t.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken validates a token and returns its claims
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(t.issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func (s *DataService) issue(subject, email, role string) (string, error) {
	if s.tokens == nil {
		return "", errors.New("token service not configured")
	}
	return s.tokens.GenerateToken(subject, email, role)
}

// LoginAdmin checks an administrator's password against the admins table.
// Any failure, including an unreachable store, reads as invalid credentials.
func (s *DataService) LoginAdmin(ctx context.Context, email, password string) (*models.AdminUser, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	log := s.log.WithField("email", email)

	rows, err := s.gw.Select(ctx, adminsTable, remote.Query{
		Filters: []remote.Filter{remote.Eq("email", email)},
		Limit:   1,
	})
	if err != nil {
		log.WithError(err).Warn("admin lookup failed")
		return nil, "", ErrInvalidCredentials
	}
	if len(rows) == 0 {
		return nil, "", ErrInvalidCredentials
	}
	row := rows[0]
	hash := remote.Text(row["password_hash"])
	if hash == "" || s.tokens == nil || !s.tokens.CheckPassword(hash, password) {
		return nil, "", ErrInvalidCredentials
	}

	admin := &models.AdminUser{
		ID:    remote.Text(row["id"]),
		Email: email,
		Role:  remote.Text(row["role"]),
	}
	if admin.Role == "" {
		admin.Role = RoleAdmin
	}
	token, err := s.issue(admin.ID, admin.Email, RoleAdmin)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	err = s.cache.Update(ctx, func(tx *cache.Tx) error {
		if err := tx.Put(cache.KeyAdminToken, token); err != nil {
			return err
		}
		return tx.Put(cache.KeyAdminUser, admin)
	})
	if err != nil {
		log.WithError(err).Error("cache write failed")
	}
	log.Info("admin signed in")
	return admin, token, nil
}

// EnsureAdmin creates the admins row for email when the table holds no
// administrator yet and reports whether it did
func (s *DataService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || s.tokens == nil {
		return false, nil
	}
	rows, err := s.gw.Select(ctx, adminsTable, remote.Query{Columns: []string{"id"}, Limit: 1})
	if err != nil {
		return false, err
	}
	if len(rows) > 0 {
		return false, nil
	}

	hash, err := s.tokens.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := s.gw.Insert(ctx, adminsTable, remote.Row{
		"email":         email,
		"password_hash": hash,
		"role":          RoleAdmin,
	}); err != nil {
		return false, err
	}
	s.log.WithField("email", email).Info("Default admin account created")
	return true, nil
}

// CurrentAdmin returns the administrator who signed in last on this
// process. Request identity comes from the token claims, not from here.
func (s *DataService) CurrentAdmin(ctx context.Context) (*models.AdminUser, bool) {
	var admin models.AdminUser
	if !s.cache.Get(ctx, cache.KeyAdminUser, &admin) || admin.Email == "" {
		return nil, false
	}
	return &admin, true
}

// PortalSignUp registers a client account and records the client as a lead
func (s *DataService) PortalSignUp(ctx context.Context, name, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	session, err := s.gw.SignUp(ctx, email, password)
	if err != nil {
		s.log.WithError(err).WithField("email", email).Warn("portal sign up failed")
		return "", err
	}
	userID := ""
	if session != nil {
		userID = session.User.ID
	}
	s.rememberPortalUser(ctx, email)
	s.AddUser(WithActor(ctx, email), models.Lead{Name: name, Email: email, Role: RoleClient})
	return s.issue(userID, email, RoleClient)
}

// PortalSignIn opens a client session
func (s *DataService) PortalSignIn(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	session, err := s.gw.SignIn(ctx, email, password)
	if err != nil || session == nil {
		s.log.WithError(err).WithField("email", email).Warn("portal sign in failed")
		return "", ErrInvalidCredentials
	}
	s.rememberPortalUser(ctx, email)
	return s.issue(session.User.ID, email, RoleClient)
}

func (s *DataService) rememberPortalUser(ctx context.Context, email string) {
	if err := s.cache.Set(ctx, cache.KeyPortalEmail, email); err != nil {
		s.log.WithError(err).Error("cache write failed")
	}
}

// CurrentPortalEmail returns the email of the client who signed in last
func (s *DataService) CurrentPortalEmail(ctx context.Context) string {
	var email string
	s.cache.Get(ctx, cache.KeyPortalEmail, &email)
	return email
}

// SignOut forgets every stored session
func (s *DataService) SignOut(ctx context.Context) error {
	err := s.cache.Update(ctx, func(tx *cache.Tx) error {
		tx.Delete(cache.KeyAdminToken)
		tx.Delete(cache.KeyAdminUser)
		tx.Delete(cache.KeyPortalEmail)
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.gw.SignOut(ctx); err != nil && !errors.Is(err, remote.ErrAuthUnsupported) {
		s.log.WithError(err).Warn("remote sign out failed")
	}
	return nil
}
