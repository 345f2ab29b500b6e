package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core"
)

const syncCachePrefix = "sync:"

// Sync makes sure a local user mirrors ident, all in a single transaction:
// the user is created if absent (granted the default role) or has its email and display name refreshed,
// and its profile is created if absent (avatar refreshed).
// Sync is idempotent and safe to retry.
func (svc *Service) Sync(ctx context.Context, ident Identity) (User, bool, error) {
	ident, err := ident.Clean()
	if err != nil {
		return User{}, false, err
	}

	var (
		usr     User
		created bool
	)
	err = svc.transact(ctx, func(repo Repository) error {
		now := NowFunc()
		usr, created, err = repo.CreateUserIfNotExist(ctx, User{
			ID:          uuid.NewString(),
			SupabaseID:  ident.SupabaseID,
			Email:       ident.Email,
			DisplayName: ident.defaultDisplayName(),
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}

		if !created {
			var changed bool
			if usr.Email != ident.Email {
				usr.Email = ident.Email
				changed = true
			}
			if ident.DisplayName != "" && usr.DisplayName != ident.DisplayName {
				usr.DisplayName = ident.DisplayName
				changed = true
			}
			if changed {
				usr.UpdatedAt = now
				if usr, err = repo.UpdateUser(ctx, usr); err != nil {
					return errors.Wrap(err, "updating user")
				}
			}
		}

		profile, _, err := repo.GetOrCreateProfile(ctx, usr.ID, now)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}
		if ident.AvatarURL != "" && profile.AvatarURL != ident.AvatarURL {
			profile.AvatarURL = ident.AvatarURL
			profile.UpdatedAt = now
			if profile, err = repo.UpdateProfile(ctx, profile); err != nil {
				return errors.Wrap(err, "updating profile")
			}
		}
		usr.Profile = &profile

		if created {
			err = svc.audit(ctx, repo, AuditLog{
				EntityType: EntityUser,
				EntityID:   usr.ID,
				Action:     ActionCreate,
				NewData:    AuditData{"supabase_id": usr.SupabaseID, "email": usr.Email},
				Metadata:   AuditData{"source": "supabase_sync"},
				CreatedAt:  now,
			})
			if err != nil {
				return err
			}
			if _, err = svc.assignRole(ctx, repo, usr, DefaultRole, nil); err != nil {
				return errors.Wrap(err, "assigning default role")
			}
		}

		if usr.Roles, err = repo.UserRoles(ctx, usr.ID); err != nil {
			return errors.Wrap(err, "getting user roles")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return User{}, false, core.NewConflictError(ErrEmailExists)
		}
		return User{}, false, err
	}
	return usr, created, nil
}

// Authenticate resolves the local user of a verified identity on every authenticated request.
// A full Sync only runs when the identity changed (or was not seen) within the sync cache TTL.
func (svc *Service) Authenticate(ctx context.Context, ident Identity) (User, error) {
	ident, err := ident.Clean()
	if err != nil {
		return User{}, err
	}
	key := syncCachePrefix + ident.SupabaseID
	fingerprint := ident.Fingerprint()

	if svc.cache != nil {
		val, err := svc.cache.Get(ctx, key)
		switch {
		case err == nil:
			if id, fp, ok := strings.Cut(val, "|"); ok && fp == fingerprint {
				usr, err := svc.GetByID(ctx, id)
				if err == nil {
					return usr, nil
				}
				if !errors.Is(err, ErrNotFound) {
					return User{}, errors.Wrap(err, "finding user by ID")
				}
			}
		case !errors.Is(err, core.ErrCacheMiss):
			svc.logger.Warn(fmt.Sprintf("sync cache get: %v", err), err)
		}
	}

	usr, _, err := svc.Sync(ctx, ident)
	if err != nil {
		return User{}, err
	}
	if err = svc.SetLastLogin(ctx, &usr); err != nil {
		return User{}, err
	}

	if svc.cache != nil {
		if err = svc.cache.Set(ctx, key, usr.ID+"|"+fingerprint); err != nil {
			svc.logger.Warn(fmt.Sprintf("sync cache set: %v", err), err)
		}
	}
	return usr, nil
}
