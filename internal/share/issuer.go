// Package share issues public read-only links and resolves them.
//
// The Issuer is the authorized side: a principal asks for the link of a
// resource and gets the single active token for it. The Viewer is the
// anonymous side: it knows nothing about principals and trusts only the
// token.
package share

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/policy"
	"github.com/erazemk/oficina/internal/store"
)

// tokenBytes is the token entropy: 256 bits.
const tokenBytes = 32

// maxAttempts bounds the get-or-create loop when a deactivation races it.
const maxAttempts = 3

// Issuer hands out public link tokens.
type Issuer struct {
	DB      *sql.DB
	BaseURL string
	// Timeout bounds every store call. Zero means no bound.
	Timeout time.Duration
	Now     func() time.Time
}

// NewIssuer returns an Issuer over db.
func NewIssuer(db *sql.DB, baseURL string, timeout time.Duration) *Issuer {
	return &Issuer{DB: db, BaseURL: baseURL, Timeout: timeout, Now: time.Now}
}

// GetOrCreateLink returns the active token for ref, creating one if needed.
// Repeated and concurrent calls return the same token until the link is
// deactivated. It does not check authorization; see Share.
func (i *Issuer) GetOrCreateLink(ctx context.Context, ref model.Ref) (string, error) {
	ctx, cancel := bound(ctx, i.Timeout)
	defer cancel()

	for range maxAttempts {
		candidate, err := newToken()
		if err != nil {
			return "", apperr.LinkCreation(err)
		}

		token, _, err := store.GetOrCreateLink(ctx, i.DB, ref, candidate)
		if errors.Is(err, store.ErrNoResource) {
			return "", apperr.ErrNotFound
		}
		if err != nil {
			return "", apperr.LinkCreation(err)
		}
		if token != "" {
			return token, nil
		}
	}
	return "", apperr.LinkCreation(errors.New("link kept being deactivated"))
}

// Share returns the public link token of ref on behalf of p.
func (i *Issuer) Share(ctx context.Context, p *model.Principal, ref model.Ref) (string, error) {
	if err := i.authorize(ctx, p, policy.ActionShare, ref); err != nil {
		return "", err
	}

	token, err := i.GetOrCreateLink(ctx, ref)
	if err != nil {
		slog.Error("failed to issue public link", "type", ref.Type, "id", ref.ID, "error", err)
		return "", err
	}

	slog.Info("public link issued", "user", p.ID, "type", ref.Type, "id", ref.ID)
	return token, nil
}

// Deactivate turns off the public link of ref. The link row is kept; a later
// Share issues a fresh token. Deactivating a resource without a link is not an
// error.
func (i *Issuer) Deactivate(ctx context.Context, p *model.Principal, ref model.Ref) error {
	if err := i.authorize(ctx, p, policy.ActionUnshare, ref); err != nil {
		return err
	}

	ctx, cancel := bound(ctx, i.Timeout)
	defer cancel()

	n, err := store.DeactivateLinks(ctx, i.DB, ref, i.now())
	if err != nil {
		slog.Error("failed to deactivate public link", "type", ref.Type, "id", ref.ID, "error", err)
		return apperr.Store("deactivating link", err)
	}

	if n > 0 {
		slog.Info("public link deactivated", "user", p.ID, "type", ref.Type, "id", ref.ID)
	}
	return nil
}

// Links returns the link history of ref, newest first.
func (i *Issuer) Links(ctx context.Context, p *model.Principal, ref model.Ref) ([]model.PublicLink, error) {
	if err := i.authorize(ctx, p, policy.ActionShare, ref); err != nil {
		return nil, err
	}

	ctx, cancel := bound(ctx, i.Timeout)
	defer cancel()

	links, err := store.ListLinks(ctx, i.DB, ref)
	if err != nil {
		return nil, apperr.Store("listing links", err)
	}
	return links, nil
}

// URL returns the public address of a token.
func (i *Issuer) URL(t model.ResourceType, token string) string {
	return strings.TrimRight(i.BaseURL, "/") + Path(t, token)
}

// Path returns the public path of a token: /public/{type}/{token}.
func Path(t model.ResourceType, token string) string {
	return fmt.Sprintf("/public/%s/%s", t, url.PathEscape(token))
}

func (i *Issuer) authorize(ctx context.Context, p *model.Principal, action policy.Action, ref model.Ref) error {
	if p == nil {
		return apperr.Denied("not authenticated")
	}

	ctx, cancel := bound(ctx, i.Timeout)
	defer cancel()

	r, err := store.GetResource(ctx, i.DB, ref)
	if err != nil {
		return apperr.Store("loading resource", err)
	}
	if r == nil {
		return apperr.ErrNotFound
	}

	if d := policy.Authorize(p, action, r); !d.Allowed {
		slog.Warn("link request denied", "user", p.ID, "action", action, "type", ref.Type, "id", ref.ID, "reason", d.Reason)
		return apperr.Denied(d.Reason)
	}
	return nil
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// newToken returns a random URL-safe token. It carries no information about
// the resource it will point at.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
