package data

import (
	"context"
	"fmt"
)

// =============================================================================
// CREDENTIAL REPOSITORY
// =============================================================================

type CredentialRepository struct {
	b Backend
}

func NewCredentialRepository(b Backend) *CredentialRepository {
	return &CredentialRepository{b: b}
}

// FindByUsername returns every row whose username matches exactly. The caller decides what
// zero or several matches mean.
func (r *CredentialRepository) FindByUsername(ctx context.Context, username string) ([]Credential, error) {
	recs, err := r.b.Select(ctx, Query{
		Table:   TableCredentials,
		Filters: []Filter{Eq(colUsername, username)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	creds := []Credential{}
	if err := Decode(recs, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *CredentialRepository) Insert(ctx context.Context, username, passwordHash string) (*Credential, error) {
	recs, err := r.b.Insert(ctx, TableCredentials, Record{
		colUsername: username,
		colPassword: passwordHash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	var cred Credential
	if err := Decode(recs[0], &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if err := r.b.Update(ctx, TableCredentials, id, Record{colPassword: passwordHash}); err != nil {
		return fmt.Errorf("failed to update credential %d: %w", id, err)
	}
	return nil
}
