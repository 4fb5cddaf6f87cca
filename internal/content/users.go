// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"fmt"

	"github.com/olegiv/osites/internal/filter"
	"github.com/olegiv/osites/internal/model"
	"github.com/olegiv/osites/internal/pocketbase"
)

// GetUserByUsername resolves a namespace owner.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}

	load := func() (*model.User, error) {
		var rec userRecord
		err := c.Collection(CollectionUsers).GetFirstListItem(ctx, filter.Eq("username", username).String(), &rec)
		if err != nil {
			if pocketbase.IsNotFound(err) {
				return nil, newError(ErrNotFound, fmt.Sprintf("User %q not found.", username), err)
			}
			s.logger.Error("failed to fetch user by username", "username", username, "error", err)
			return nil, newError(ErrUnavailable, msgUserGeneric, err)
		}
		return mapUser(c, &rec), nil
	}
	key, ok := cacheKey(c, username)
	if !ok {
		return load()
	}
	return s.users.GetOrLoad(ctx, key, load)
}
