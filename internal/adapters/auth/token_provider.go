package auth

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

// TokenAuthProvider validates the session token handed over by the account
// service. Session changes fire the OnAuthChange listeners.
type TokenAuthProvider struct {
	secretKey []byte
	issuer    string

	mu        sync.Mutex
	user      *domain.SyncUser
	expiresAt time.Time
	listeners map[int]func(user *domain.SyncUser)
	nextID    int
}

func NewTokenAuthProvider(secretKey, issuer string) *TokenAuthProvider {
	return &TokenAuthProvider{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		listeners: make(map[int]func(user *domain.SyncUser)),
	}
}

func (p *TokenAuthProvider) SetToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secretKey, nil
	})
	if err != nil {
		return fmt.Errorf("auth: invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("auth: invalid token claims")
	}

	if iss, ok := claims["iss"].(string); !ok || iss != p.issuer {
		return fmt.Errorf("auth: invalid token issuer")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return fmt.Errorf("auth: invalid token subject")
	}

	email, _ := claims["email"].(string)

	var expiresAt time.Time
	if exp, ok := claims["exp"].(float64); ok {
		expiresAt = time.Unix(int64(exp), 0)
	}

	user := &domain.SyncUser{ID: userID, Email: email, CreatedAt: time.Now().UTC()}

	p.mu.Lock()
	p.user = user
	p.expiresAt = expiresAt
	p.mu.Unlock()

	log.Printf("[auth] session established for user %s", userID)
	p.notify(user)
	return nil
}

func (p *TokenAuthProvider) SignOut() {
	p.mu.Lock()
	wasSignedIn := p.user != nil
	p.user = nil
	p.expiresAt = time.Time{}
	p.mu.Unlock()

	if wasSignedIn {
		log.Println("[auth] session cleared")
		p.notify(nil)
	}
}

// GetUser treats an expired token as signed out and fires the listeners once.
func (p *TokenAuthProvider) GetUser(ctx context.Context) (*domain.SyncUser, error) {
	p.mu.Lock()
	expired := p.user != nil && !p.expiresAt.IsZero() && time.Now().After(p.expiresAt)
	if expired {
		p.user = nil
		p.expiresAt = time.Time{}
	}
	user := p.user
	p.mu.Unlock()

	if expired {
		log.Println("[auth] session token expired")
		p.notify(nil)
		return nil, nil
	}
	return user, nil
}

func (p *TokenAuthProvider) OnAuthChange(fn func(user *domain.SyncUser)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *TokenAuthProvider) notify(user *domain.SyncUser) {
	p.mu.Lock()
	fns := make([]func(user *domain.SyncUser), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

var _ domain.AuthProvider = (*TokenAuthProvider)(nil)
