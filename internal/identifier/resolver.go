package identifier

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/models"
	"github.com/dmitrijs2005/userkit/internal/session"
)

// Lookup is the set of host primitives the resolver dispatches to. Each
// method returns common.ErrorNotFound when nothing matches.
type Lookup interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByLogin(ctx context.Context, login string) (*models.Account, error)
	GetBySlug(ctx context.Context, slug string) (*models.Account, error)
}

// Resolver maps identifiers to accounts.
type Resolver struct {
	lookup Lookup
}

func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the account ident names, or common.ErrorNotFound.
// The first matching rule wins:
//
//  1. an empty identifier (or id 0) with fallback set resolves to the
//     session account carried by ctx, if any;
//  2. references and ids are looked up by id;
//  3. emails are looked up by email only;
//  4. logins are looked up by login, then by slug.
//
// Errors other than not-found come from the host and are returned as is.
func (r *Resolver) Resolve(ctx context.Context, ident Identifier, fallback bool) (*models.Account, error) {
	switch ident.kind {
	case KindRef:
		return r.byID(ctx, ident.id)

	case KindEmpty:
		return r.current(ctx, fallback)

	case KindID:
		if ident.id == 0 {
			return r.current(ctx, fallback)
		}
		return r.byID(ctx, ident.id)

	case KindEmail:
		if ident.text == "" {
			return nil, common.ErrorNotFound
		}
		return found(r.lookup.GetByEmail(ctx, ident.text))

	case KindLogin:
		if ident.text == "" {
			return nil, common.ErrorNotFound
		}
		a, err := found(r.lookup.GetByLogin(ctx, ident.text))
		if errors.Is(err, common.ErrorNotFound) {
			return found(r.lookup.GetBySlug(ctx, ident.text))
		}
		return a, err
	}

	return nil, common.ErrorNotFound
}

// ResolveAll resolves idents without fallback and returns the distinct
// accounts found, in the order they were first discovered. Identifiers that
// resolve to nothing are skipped.
func (r *Resolver) ResolveAll(ctx context.Context, idents []Identifier) ([]*models.Account, error) {
	accounts := make([]*models.Account, 0, len(idents))
	seenIdent := make(map[Identifier]struct{}, len(idents))
	seenID := make(map[int64]struct{}, len(idents))

	for _, ident := range idents {
		if _, ok := seenIdent[ident]; ok {
			continue
		}
		seenIdent[ident] = struct{}{}

		a, err := r.Resolve(ctx, ident, false)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if _, ok := seenID[a.ID]; ok {
			continue
		}
		seenID[a.ID] = struct{}{}
		accounts = append(accounts, a)
	}

	return accounts, nil
}

func (r *Resolver) current(ctx context.Context, fallback bool) (*models.Account, error) {
	if !fallback {
		return nil, common.ErrorNotFound
	}
	s, ok := session.FromContext(ctx)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID(ctx, s.AccountID)
}

func (r *Resolver) byID(ctx context.Context, id int64) (*models.Account, error) {
	if id <= 0 {
		return nil, common.ErrorNotFound
	}
	return found(r.lookup.GetByID(ctx, id))
}

// found turns a (nil, nil) lookup result into common.ErrorNotFound.
func found(a *models.Account, err error) (*models.Account, error) {
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, common.ErrorNotFound
	}
	return a, nil
}
