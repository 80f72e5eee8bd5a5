package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	emailSvc "laundry-pickup/pkg/email"
	"laundry-pickup/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ServiceInterface defines methods for user business logic.
type ServiceInterface interface {
	GetClientOrigin() string

	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	HandleGoogleLogin() (string, string, error)
	HandleGoogleCallback(ctx context.Context, code string) (*models.AuthResponse, error)

	GetProfile(ctx context.Context, sess auth.Session) (*models.Profile, error)
	UpdateProfile(ctx context.Context, sess auth.Session, data models.ProfileUpdateData) (*models.Profile, error)

	ListUsers(ctx context.Context, sess auth.Session, role *auth.Role, page, limit int) ([]*models.User, int, error)
	SetRole(ctx context.Context, sess auth.Session, userID string, role auth.Role) error
	DeleteAccount(ctx context.Context, sess auth.Session, userID string) error
}

type Service struct {
	userRepo          RepositoryInterface
	emailer           emailSvc.ServiceInterface
	templateManager   *emailSvc.TemplateManager
	jwtSecret         string
	jwtTTL            time.Duration
	clientOrigin      string
	googleOAuthConfig *oauth2.Config
	now               func() time.Time
}

func NewService(
	userRepo RepositoryInterface,
	emailer emailSvc.ServiceInterface,
	tm *emailSvc.TemplateManager,
	jwtSecret string,
	jwtTTL time.Duration,
	clientOrigin string,
	googleOAuthConfig *oauth2.Config,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		userRepo:          userRepo,
		emailer:           emailer,
		templateManager:   tm,
		jwtSecret:         jwtSecret,
		jwtTTL:            jwtTTL,
		clientOrigin:      clientOrigin,
		googleOAuthConfig: googleOAuthConfig,
		now:               now,
	}
}

// GoogleUserInfo is the subset of the Google userinfo answer we use.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// GetClientOrigin lets the handler build frontend redirects.
func (s *Service) GetClientOrigin() string {
	return s.clientOrigin
}

func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	_, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("service.Signup.FindByEmail: %w", err)
	}
	if err == nil {
		return nil, models.ErrConflict
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("service.Signup.HashPassword: %w", err)
	}
	hash := string(hashedPassword)

	created, err := s.userRepo.Create(ctx, &models.User{
		Email:        req.Email,
		AuthProvider: "email",
		Role:         auth.RoleCustomer.String(),
		FullName:     req.FullName,
	}, &hash)
	if err != nil {
		return nil, fmt.Errorf("service.Signup.CreateUser: %w", err)
	}

	s.sendWelcome(created)
	return s.generateAuthResponse(created)
}

// sendWelcome mails in the background so signup never waits on SES.
func (s *Service) sendWelcome(user *models.User) {
	htmlContent, err := s.templateManager.WelcomeHTML(emailSvc.TemplateData{
		Name: user.FullName,
		Link: s.clientOrigin,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to render welcome email")
		return
	}
	plainTextContent := fmt.Sprintf("Hi %s, thanks for signing up! Book your first pickup at %s", user.FullName, s.clientOrigin)

	go func() {
		err := s.emailer.SendEmail(context.Background(), user.Email, "Welcome to Laundry Pickup", plainTextContent, htmlContent)
		if err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to send welcome email")
		}
	}()
}

func (s *Service) generateAuthResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := utils.NewAccessToken(s.jwtSecret, user, s.jwtTTL, s.now())
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &models.AuthResponse{AccessToken: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	userWithHash, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login.FindByEmail: %w", err)
	}
	// OAuth accounts have no password to compare against.
	if userWithHash.PasswordHash == "" {
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(userWithHash.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.generateAuthResponse(userWithHash)
}

// HandleGoogleLogin returns the consent URL and the state value to pin in a cookie.
func (s *Service) HandleGoogleLogin() (string, string, error) {
	state, err := utils.GenerateSecureToken(16)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state for google login: %w", err)
	}
	return s.googleOAuthConfig.AuthCodeURL(state), state, nil
}

// HandleGoogleCallback exchanges the code, then finds or creates the matching
// customer account.
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*models.AuthResponse, error) {
	token, err := s.googleOAuthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange failed: %w", err)
	}

	response, err := s.googleOAuthConfig.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from google: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned %s", response.Status)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(response.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if !userInfo.VerifiedEmail {
		return nil, models.ErrInvalidCredentials
	}
	return s.loginOAuthUser(ctx, userInfo)
}

func (s *Service) loginOAuthUser(ctx context.Context, info GoogleUserInfo) (*models.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, info.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("service.GoogleCallback.FindByEmail: %w", err)
	}
	if errors.Is(err, models.ErrNotFound) {
		user, err = s.userRepo.Create(ctx, &models.User{
			Email:        info.Email,
			AuthProvider: "google",
			Role:         auth.RoleCustomer.String(),
			FullName:     info.Name,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("service.GoogleCallback.CreateUser: %w", err)
		}
		s.sendWelcome(user)
	}
	return s.generateAuthResponse(user)
}

func (s *Service) GetProfile(ctx context.Context, sess auth.Session) (*models.Profile, error) {
	if err := auth.Require(sess, auth.RoleCustomer, auth.RoleDriver, auth.RoleAdmin); err != nil {
		return nil, err
	}
	profile, err := s.userRepo.GetProfile(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service.GetProfile: %w", err)
	}
	balance, err := s.userRepo.PointsBalance(ctx, sess.UserID, s.now())
	if err != nil {
		return nil, fmt.Errorf("service.GetProfile: %w", err)
	}
	profile.PointsBalance = balance
	return profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, sess auth.Session, data models.ProfileUpdateData) (*models.Profile, error) {
	if err := auth.Require(sess, auth.RoleCustomer, auth.RoleDriver, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(data); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.UpdateProfile(ctx, sess.UserID, data); err != nil {
		return nil, fmt.Errorf("service.UpdateProfile: %w", err)
	}
	return s.GetProfile(ctx, sess)
}

func (s *Service) ListUsers(ctx context.Context, sess auth.Session, role *auth.Role, page, limit int) ([]*models.User, int, error) {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}
	users, total, err := s.userRepo.List(ctx, role, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ListUsers: %w", err)
	}
	return users, total, nil
}

// SetRole changes another user's role. Admins cannot demote themselves, so
// there is always a way back into the admin area.
func (s *Service) SetRole(ctx context.Context, sess auth.Session, userID string, role auth.Role) error {
	if err := auth.Require(sess, auth.RoleAdmin); err != nil {
		return err
	}
	if userID == sess.UserID {
		return fmt.Errorf("%w: cannot change your own role", models.ErrConflict)
	}
	if uuid.Validate(userID) != nil {
		return models.ErrNotFound
	}
	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return fmt.Errorf("service.SetRole: %w", err)
	}
	log.Info().Str("admin_id", sess.UserID).Str("user_id", userID).Str("role", role.String()).Msg("Role changed")
	return nil
}

// DeleteAccount removes a user and all their data. Deleting an account that is
// already gone succeeds.
func (s *Service) DeleteAccount(ctx context.Context, sess auth.Session, userID string) error {
	if err := auth.RequireSelfOr(sess, userID, auth.RoleAdmin); err != nil {
		return err
	}
	if uuid.Validate(userID) != nil {
		return nil
	}
	existed, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("service.DeleteAccount: %w", err)
	}
	if existed {
		log.Info().Str("actor_id", sess.UserID).Str("user_id", userID).Msg("Account deleted")
	}
	return nil
}

// GetRole serves the per-request session middleware.
func (s *Service) GetRole(ctx context.Context, userID string) (auth.Role, error) {
	return s.userRepo.GetRole(ctx, userID)
}

// Contact serves the order notifier.
func (s *Service) Contact(ctx context.Context, userID string) (string, string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return user.Email, user.FullName, nil
}
