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

// FetchSiteByDomain resolves the site configured for domain. The domain is
// the request host as sent, port included, and is matched exactly.
func (s *Store) FetchSiteByDomain(ctx context.Context, domain string) (*model.Site, error) {
	c, cerr := s.client(ctx)
	if cerr != nil {
		return nil, cerr
	}

	load := func() (*model.Site, error) {
		var rec siteRecord
		err := c.Collection(CollectionSites).GetFirstListItem(ctx, filter.Eq("domain", domain).String(), &rec)
		if err != nil {
			if pocketbase.IsNotFound(err) {
				return nil, newError(ErrNotFound, fmt.Sprintf("No site configured for domain %q.", domain), err)
			}
			s.logger.Error("failed to fetch site by domain", "domain", domain, "error", err)
			return nil, newError(ErrUnavailable, msgSiteGeneric, err)
		}
		return mapSite(c, &rec, s.logger), nil
	}
	key, ok := cacheKey(c, domain)
	if !ok {
		return load()
	}
	return s.sites.GetOrLoad(ctx, key, load)
}
