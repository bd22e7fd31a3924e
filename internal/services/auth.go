package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/platform/apierr"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/repos"
	"github.com/kineticare/kineticare-backend/internal/requestdata"
	"github.com/kineticare/kineticare-backend/internal/types"
)

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) error
	LoginUser(ctx context.Context, email, password string) (accessToken string, refreshToken string, err error)
	RefreshUser(ctx context.Context) (accessToken string, refreshToken string, err error)
	LogoutUser(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	jwtSecretKey  string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return apierr.New(http.StatusBadRequest, "BAD_REQUEST", fmt.Errorf("a valid email is required"))
	}
	if len(user.Password) < 8 {
		return apierr.New(http.StatusBadRequest, "BAD_REQUEST", fmt.Errorf("password must be at least 8 characters"))
	}
	exists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return apierr.New(http.StatusConflict, "EMAIL_TAKEN", fmt.Errorf("email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)
	user.ID = uuid.New()

	if _, err := as.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return "", "", fmt.Errorf("failed to look up user: %w", err)
	}
	if len(users) == 0 || users[0] == nil {
		return "", "", apierr.New(http.StatusUnauthorized, "INVALID_CREDENTIALS", fmt.Errorf("invalid email or password"))
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", "", apierr.New(http.StatusUnauthorized, "INVALID_CREDENTIALS", fmt.Errorf("invalid email or password"))
	}

	var access, refresh string
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userTokenRepo.DeleteByUserIDs(ctx, tx, []uuid.UUID{user.ID}); err != nil {
			return fmt.Errorf("failed to clear existing tokens: %w", err)
		}
		access, refresh, err = as.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (as *authService) RefreshUser(ctx context.Context) (string, string, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.RefreshToken == "" {
		return "", "", apierr.New(http.StatusUnauthorized, "INVALID_TOKEN", fmt.Errorf("missing refresh token"))
	}

	tokens, err := as.userTokenRepo.GetByRefreshTokens(ctx, nil, []string{rd.RefreshToken})
	if err != nil {
		return "", "", fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if len(tokens) == 0 || tokens[0] == nil {
		return "", "", apierr.New(http.StatusUnauthorized, "INVALID_TOKEN", fmt.Errorf("invalid refresh token"))
	}
	row := tokens[0]
	if row.ExpiresAt.Before(time.Now()) {
		return "", "", apierr.New(http.StatusUnauthorized, "TOKEN_EXPIRED", fmt.Errorf("refresh token expired"))
	}

	users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{row.UserID})
	if err != nil || len(users) == 0 || users[0] == nil {
		return "", "", fmt.Errorf("user not found")
	}

	var access, refresh string
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userTokenRepo.DeleteByUserIDs(ctx, tx, []uuid.UUID{row.UserID}); err != nil {
			return fmt.Errorf("failed to rotate tokens: %w", err)
		}
		access, refresh, err = as.issueTokens(ctx, tx, users[0])
		return err
	})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.New(http.StatusUnauthorized, "UNAUTHENTICATED", fmt.Errorf("not authenticated"))
	}
	return as.userTokenRepo.DeleteByUserIDs(ctx, nil, []uuid.UUID{rd.UserID})
}

// SetContextFromToken verifies the JWT, checks the token row still exists
// (so logout revokes access immediately) and attaches the identity to ctx.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !token.Valid {
		return ctx, fmt.Errorf("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ctx, fmt.Errorf("invalid token subject")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return ctx, fmt.Errorf("invalid token subject")
	}

	rows, err := as.userTokenRepo.GetByAccessTokens(ctx, nil, []string{tokenString})
	if err != nil {
		return ctx, fmt.Errorf("failed to verify token: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return ctx, fmt.Errorf("token revoked")
	}

	rd := &requestdata.RequestData{
		TokenString:  tokenString,
		RefreshToken: rows[0].RefreshToken,
		UserID:       userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (string, string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"iat": now.Unix(),
		"exp": now.Add(as.accessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh := uuid.NewString()

	row := &types.UserToken{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(as.refreshTTL),
	}
	if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{row}); err != nil {
		return "", "", fmt.Errorf("failed to store tokens: %w", err)
	}
	return access, refresh, nil
}
