package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/codes"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12
	// TokenExpiry is how long JWT tokens are valid.
	TokenExpiry = 7 * 24 * time.Hour // 7 days

	fallbackUsername = "user"
)

var (
	errUsernameTaken = errcodes.Conflict("The username has already been taken.")
	errEmailTaken    = errcodes.Conflict("The email has already been taken.")
	errBadLogin      = errcodes.ValidationError("These credentials do not match our records.")
)

// JWTClaims represents the claims in a JWT token.
type JWTClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// Service handles authentication operations.
type Service struct {
	db        *bun.DB
	jwtSecret []byte
}

// NewService creates a new auth service.
func NewService(db *bun.DB, jwtSecret string) *Service {
	return &Service{
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
}

type RegisterOptions struct {
	Name     string
	Username string
	Email    string
	Password string
}

// Register creates a password-based account.
func (s *Service) Register(ctx context.Context, opts RegisterOptions) (*models.User, error) {
	hash, err := HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         opts.Name,
		Username:     opts.Username,
		Email:        opts.Email,
		PasswordHash: &hash,
	}

	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := EnsureAvailable(ctx, tx, 0, opts.Username, opts.Email); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(user).Exec(ctx)
		if codes.IsUniqueViolation(err) {
			if strings.Contains(err.Error(), "email") {
				return errEmailTaken
			}
			return errUsernameTaken
		}
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// EnsureAvailable returns a conflict error when username or email belongs to
// a user other than exceptID. Empty values are not checked.
func EnsureAvailable(ctx context.Context, db bun.IDB, exceptID int, username, email string) error {
	if username != "" {
		taken, err := db.NewSelect().
			Model((*models.User)(nil)).
			Where("u.username = ? COLLATE NOCASE", username).
			Where("u.id != ?", exceptID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if taken {
			return errUsernameTaken
		}
	}
	if email != "" {
		taken, err := db.NewSelect().
			Model((*models.User)(nil)).
			Where("u.email = ? COLLATE NOCASE", email).
			Where("u.id != ?", exceptID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if taken {
			return errEmailTaken
		}
	}
	return nil
}

// Authenticate validates credentials and returns the user if valid. The login
// may be either the username or the email address.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		WhereOr("u.username = ? COLLATE NOCASE", login).
		WhereOr("u.email = ? COLLATE NOCASE", login).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadLogin
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if user.PasswordHash == nil || !CheckPassword(password, *user.PasswordHash) {
		return nil, errBadLogin
	}

	return user, nil
}

// GenerateToken creates a new JWT token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

func (s *Service) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// GoogleProfile is the subset of the Google userinfo response we keep.
type GoogleProfile struct {
	ID     string `json:"sub"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"picture"`
}

// UpsertGoogleUser signs in the account that owns the profile's email,
// linking it to Google, or creates a new passwordless account.
func (s *Service) UpsertGoogleUser(ctx context.Context, profile GoogleProfile) (*models.User, error) {
	if profile.Email == "" {
		return nil, errors.New("google profile has no email")
	}

	user := &models.User{}
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		err := tx.NewSelect().
			Model(user).
			Where("u.email = ? COLLATE NOCASE", profile.Email).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		if err == nil {
			user.GoogleID = &profile.ID
			if profile.Avatar != "" {
				user.Avatar = &profile.Avatar
			}
			if profile.Name != "" {
				user.Name = profile.Name
			}
			user.UpdatedAt = now
			_, err := tx.NewUpdate().
				Model(user).
				Column("google_id", "avatar", "name", "updated_at").
				WherePK().
				Exec(ctx)
			return errors.WithStack(err)
		}

		username, err := DeriveUsername(ctx, tx, profile.Name)
		if err != nil {
			return err
		}

		name := profile.Name
		if name == "" {
			name = username
		}
		*user = models.User{
			CreatedAt: now,
			UpdatedAt: now,
			Name:      name,
			Username:  username,
			Email:     profile.Email,
			GoogleID:  &profile.ID,
		}
		if profile.Avatar != "" {
			user.Avatar = &profile.Avatar
		}
		_, err = tx.NewInsert().Model(user).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// DeriveUsername lower-cases name, strips everything but ASCII letters and
// digits, and appends the first free counter when the result is taken.
func DeriveUsername(ctx context.Context, db bun.IDB, name string) (string, error) {
	base := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
	if base == "" {
		base = fallbackUsername
	}

	username := base
	for counter := 1; ; counter++ {
		taken, err := db.NewSelect().
			Model((*models.User)(nil)).
			Where("u.username = ? COLLATE NOCASE", username).
			Exists(ctx)
		if err != nil {
			return "", errors.WithStack(err)
		}
		if !taken {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, counter)
	}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
