// Package wallet implements registration, login and the transaction ledger
// on top of the storage interfaces.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"mywallet/internal/auth"
	"mywallet/internal/balance"
	"mywallet/internal/models"
	"mywallet/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=3"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginInput is the payload for opening a session.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TransactionInput is the payload for recording a transaction. Kind comes
// from the request path.
type TransactionInput struct {
	Kind        string          `json:"-"`
	Description string          `json:"description" validate:"required"`
	Value       decimal.Decimal `json:"value"`
}

// History is a user's ledger, newest transaction first.
type History struct {
	Name         string
	Transactions []models.Transaction
	Balance      decimal.Decimal
}

// Options tunes a Service.
type Options struct {
	// BcryptCost is the password hashing cost. Zero selects bcrypt's default.
	BcryptCost int
	// Now overrides the clock used to stamp transactions.
	Now func() time.Time
}

// Service runs the wallet operations against injected stores.
type Service struct {
	users        storage.UserStore
	sessions     storage.SessionStore
	transactions storage.TransactionStore
	hasher       *auth.Hasher
	validate     *validator.Validate
	now          func() time.Time
	newToken     func() (string, error)
}

// NewService builds a Service. Zero-valued Options select bcrypt's default
// cost and the storage clock.
func NewService(users storage.UserStore, sessions storage.SessionStore, transactions storage.TransactionStore, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = storage.Now
	}
	return &Service{
		users:        users,
		sessions:     sessions,
		transactions: transactions,
		hasher:       auth.NewHasher(opts.BcryptCost),
		validate:     newValidator(),
		now:          now,
		newToken:     auth.GenerateSessionToken,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Register creates a user. The email check before insert is a shortcut; the
// store's uniqueness constraint decides.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return models.User{}, fromValidator(err)
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return models.User{}, invalid(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, in.Name, in.Email, hash)
	if errors.Is(err, storage.ErrDuplicate) {
		return models.User{}, ErrEmailTaken
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login verifies credentials and opens a new session, returning its token.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return "", fromValidator(err)
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", ErrInvalidPassword
	}

	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.sessions.CreateSession(ctx, token, user.ID); err != nil {
		return "", err
	}
	return token, nil
}

// Authenticate resolves a bearer token to its user. A missing token, an
// unknown session and a session whose user is gone all yield
// ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrUnauthenticated
	}

	session, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrUnauthenticated
	}
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrUnauthenticated
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// AddTransaction records a transaction for user.
func (s *Service) AddTransaction(ctx context.Context, user models.User, in TransactionInput) (models.Transaction, error) {
	in.Description = strings.TrimSpace(in.Description)

	var problems []string
	kind, kindErr := models.ParseKind(in.Kind)
	if kindErr != nil {
		problems = append(problems, "type must be input or output")
	}
	if err := s.validate.Struct(in); err != nil {
		verr := fromValidator(err)
		var ve *ValidationError
		if !errors.As(verr, &ve) {
			return models.Transaction{}, verr
		}
		problems = append(problems, ve.Problems...)
	}
	if problem := checkValue(in.Value); problem != "" {
		problems = append(problems, problem)
	}
	if len(problems) > 0 {
		return models.Transaction{}, invalid(problems...)
	}

	return s.transactions.CreateTransaction(ctx, models.Transaction{
		UserID:      user.ID,
		Kind:        kind,
		Description: in.Description,
		Value:       in.Value,
		CreatedAt:   s.now(),
	})
}

// History returns all of user's transactions and the resulting balance.
func (s *Service) History(ctx context.Context, user models.User) (History, error) {
	txs, err := s.transactions.ListTransactions(ctx, user.ID)
	if err != nil {
		return History{}, err
	}
	return History{
		Name:         user.Name,
		Transactions: txs,
		Balance:      balance.Compute(txs),
	}, nil
}

// SeedUser registers in when the user store is empty. It reports whether a
// user was created.
func (s *Service) SeedUser(ctx context.Context, in RegisterInput) (bool, error) {
	count, err := s.users.UserCount(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.Register(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

// Transaction values carry cents at most and stay below one trillion.
const (
	maxValueScale    = 2
	maxValueExponent = 12
)

var maxValue = decimal.New(1, maxValueExponent)

// checkValue tests the exponent before comparing, so values like 1e-900000
// are rejected without being expanded.
func checkValue(v decimal.Decimal) string {
	switch {
	case !v.IsPositive():
		return "value must be a positive number"
	case v.Exponent() < -maxValueScale:
		return fmt.Sprintf("value must have at most %d decimal places", maxValueScale)
	case v.Exponent() >= maxValueExponent || !v.LessThan(maxValue):
		return fmt.Sprintf("value must be less than %s", maxValue.String())
	default:
		return ""
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
