package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize/english"

	"github.com/artpar/formdesk/internal/core/auth"
	"github.com/artpar/formdesk/internal/core/catalog"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/store"
)

// SeedResult describes what Seed did.
type SeedResult struct {
	Email   string
	Created bool
	Forms   int
	Fields  int
}

// Summary returns a one-line report for the terminal.
func (r SeedResult) Summary() string {
	if !r.Created {
		return fmt.Sprintf("%s already exists, nothing to do", r.Email)
	}
	return fmt.Sprintf("created %s with %s and %s",
		r.Email,
		english.Plural(r.Forms, "form", ""),
		english.Plural(r.Fields, "field", ""),
	)
}

// Seed creates the demo account and its forms in one transaction. It is a
// no-op when the demo e-mail is already registered.
func Seed(ctx context.Context, s store.Store, bcryptCost int) (SeedResult, error) {
	data, err := catalog.SeedData()
	if err != nil {
		return SeedResult{}, err
	}

	result := SeedResult{Email: domain.NormalizeEmail(data.User.Email)}

	_, err = s.GetUserByEmail(ctx, result.Email)
	if err == nil {
		return result, nil
	}
	if !store.IsNotFound(err) {
		return result, err
	}

	hash, err := auth.HashPassword(data.User.Password, bcryptCost)
	if err != nil {
		return result, err
	}
	user := domain.NewUser(data.User.Email, data.User.Name, hash)

	err = s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, &user); err != nil {
			return err
		}
		for _, tpl := range data.Forms {
			form, err := domain.NewForm(user.ID, tpl.Input())
			if err != nil {
				return fmt.Errorf("seed form %q: %w", tpl.ID, err)
			}
			if err := tx.CreateForm(ctx, &form); err != nil {
				return err
			}
			result.Forms++
			result.Fields += len(form.Fields)
		}
		return nil
	})
	if err != nil {
		return SeedResult{Email: result.Email}, err
	}

	result.Created = true
	return result, nil
}
