package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/metrics"
	jwtutil "dinidesk_backend/pkg/utils/jwt"
)

const MinPasswordLength = 6

var _ Provider = (*LocalProvider)(nil)
var _ LoginRecorder = (*LocalProvider)(nil)

// LocalProvider authenticates against the users table.
type LocalProvider struct {
	db     *gorm.DB
	tokens *jwtutil.Manager
	now    func() time.Time

	mu          sync.RWMutex
	subscribers map[int]func(Event)
	nextSubID   int
}

func NewLocalProvider(db *gorm.DB, tokens *jwtutil.Manager) *LocalProvider {
	return &LocalProvider{
		db:          db,
		tokens:      tokens,
		now:         time.Now,
		subscribers: make(map[int]func(Event)),
	}
}

type NewUser struct {
	Email     string
	Password  string
	Role      model.Role
	FirstName string
	LastName  string
	Phone     string
}

// CreateUser stores a user with a bcrypt password hash.
func (p *LocalProvider) CreateUser(ctx context.Context, in NewUser) (*model.User, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.Invalid("a valid email is required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, model.Invalid("password must be at least %d characters", MinPasswordLength)
	}
	role := in.Role.OrDefault()
	if !role.Valid() {
		return nil, model.Invalid("unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}

	user := model.User{
		Email:     email,
		Password:  string(hash),
		Role:      role,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return model.ErrEmailTaken
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, model.Wrap(err, "create user")
	}
	return &user, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string, role model.Role) (*Session, error) {
	user, err := p.CreateUser(ctx, NewUser{Email: email, Password: password, Role: role})
	metrics.AuthAttemptsTotal.WithLabelValues("sign_up", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return p.openSession(user)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := p.signIn(ctx, email, password)
	metrics.AuthAttemptsTotal.WithLabelValues("sign_in", metrics.Outcome(err)).Inc()
	return sess, err
}

func (p *LocalProvider) signIn(ctx context.Context, email, password string) (*Session, error) {
	var user model.User
	err := p.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrAuthentication
	}
	if err != nil {
		return nil, model.Wrap(err, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.ErrAuthentication
	}
	return p.openSession(&user)
}

func (p *LocalProvider) openSession(user *model.User) (*Session, error) {
	role := user.Role.OrDefault()
	token, claims, err := p.tokens.GenerateToken(user.ID, user.Email, string(role))
	if err != nil {
		return nil, fmt.Errorf("could not generate token: %w", err)
	}
	sess := &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Actor:     actorFromUser(user),
	}
	p.emit(Event{Type: EventSignedIn, UserID: user.ID, Session: sess})
	return sess, nil
}

// SignOut revokes token until its natural expiry. Unknown or malformed
// tokens are ignored.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	revoked := model.RevokedToken{JTI: claims.ID, ExpiresAt: claims.ExpiresAt.Time.UTC()}
	if err := p.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&revoked).Error; err != nil {
		return model.Wrap(err, "revoke token")
	}
	p.emit(Event{Type: EventSignedOut, UserID: claims.UserID, Token: token})
	return nil
}

func (p *LocalProvider) CurrentSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return nil, nil
	}

	db := p.db.WithContext(ctx)
	var revoked int64
	if err := db.Model(&model.RevokedToken{}).Where("jti = ?", claims.ID).Count(&revoked).Error; err != nil {
		return nil, model.Wrap(err, "check revocation")
	}
	if revoked > 0 {
		return nil, nil
	}

	// the role is re-read on every lookup so a demotion applies immediately
	var user model.User
	err = db.First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, model.Wrap(err, "load user")
	}

	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Actor:     actorFromUser(&user),
	}, nil
}

func (p *LocalProvider) RecordLogin(ctx context.Context, userID uint, at time.Time) error {
	return p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login", at.UTC()).Error
}

func (p *LocalProvider) RecordLoginHistory(ctx context.Context, userID uint, device, ip string) error {
	if len(device) > 255 {
		device = device[:255]
	}
	entry := model.LoginHistory{UserID: userID, Device: device, IP: ip}
	return p.db.WithContext(ctx).Create(&entry).Error
}

func (p *LocalProvider) LoginHistory(ctx context.Context, userID uint, limit int) ([]model.LoginHistory, error) {
	var entries []model.LoginHistory
	err := p.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error
	return entries, model.Wrap(err, "list login history")
}

func (p *LocalProvider) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := p.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, model.Wrap(err, "load user")
	}
	return &user, nil
}

func (p *LocalProvider) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := p.db.WithContext(ctx).Order("id").Find(&users).Error
	return users, model.Wrap(err, "list users")
}

// SetRole changes a user's role and notifies subscribers.
func (p *LocalProvider) SetRole(ctx context.Context, userID uint, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, model.Invalid("unknown role %q", role)
	}
	res := p.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("role", role)
	if res.Error != nil {
		return nil, model.Wrap(res.Error, "update role")
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, model.ErrNotFound)
	}
	log.Info().Uint("user_id", userID).Str("role", string(role)).Msg("User role changed")
	p.emit(Event{Type: EventUserUpdated, UserID: userID})
	return p.GetUser(ctx, userID)
}

type ProfileInput struct {
	FirstName string
	LastName  string
	Phone     string
	AvatarURL string
}

func (p *LocalProvider) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*model.User, error) {
	updates := map[string]interface{}{
		"first_name": strings.TrimSpace(in.FirstName),
		"last_name":  strings.TrimSpace(in.LastName),
		"phone":      strings.TrimSpace(in.Phone),
	}
	if in.AvatarURL != "" {
		updates["avatar_url"] = in.AvatarURL
	}
	if err := p.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return nil, model.Wrap(err, "update profile")
	}
	return p.GetUser(ctx, userID)
}

// PurgeRevoked drops revocations whose token has expired anyway.
func (p *LocalProvider) PurgeRevoked(ctx context.Context, now time.Time) (int64, error) {
	res := p.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&model.RevokedToken{})
	return res.RowsAffected, model.Wrap(res.Error, "purge revoked tokens")
}

// UsersWithRoles returns the users holding any of roles, for notifications.
func (p *LocalProvider) UsersWithRoles(ctx context.Context, roles ...model.Role) ([]model.User, error) {
	var users []model.User
	err := p.db.WithContext(ctx).Where("role IN ?", roles).Order("id").Find(&users).Error
	return users, model.Wrap(err, "list users by role")
}

func (p *LocalProvider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
		})
	}
}

// SubscriberCount is exposed for diagnostics and tests.
func (p *LocalProvider) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

func (p *LocalProvider) emit(ev Event) {
	p.mu.RLock()
	ids := make([]int, 0, len(p.subscribers))
	for id := range p.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, p.subscribers[id])
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func actorFromUser(u *model.User) Actor {
	return Actor{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role.OrDefault(),
		Name:  u.GetFullName(),
	}
}
