// Package popfilter implements the Population Filter (C6): determining the
// set of personIds that must be loaded into the working population for a
// run, queried against a source-population store the way the teacher's
// internal/analytics.Store queries its flow-summary database — batched
// database/sql IN-clause queries against a modernc.org/sqlite backend.
package popfilter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/transitguard/zonepolicy/internal/errors"
	"github.com/transitguard/zonepolicy/internal/network"
	"github.com/transitguard/zonepolicy/internal/zonemodel"
	"github.com/transitguard/zonepolicy/internal/zonenet"
)

// batchSize caps how many link ids go into a single IN-clause query, to
// respect the backing store's bound-parameter limit (spec §4.6).
const batchSize = 500

// Area is a custom or scaled simulation-area polygon, expressed in the same
// link-membership terms as a ZoneLinkSet so the filter can treat it
// identically.
type Area struct {
	Name     string
	AllLinks map[network.LinkID]struct{}
}

// Store is the source-population database the filter queries. Schema:
//
//	route_links(person_id TEXT, link_id TEXT, link_order INTEGER, leg_index INTEGER, is_last_of_leg INTEGER)
//	routeless_activities(person_id TEXT, lon REAL, lat REAL)
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the source-population SQLite database at path,
// matching the teacher's analytics.Store connection string convention (WAL
// mode, a busy timeout so concurrent scenario-assembly reads don't
// spuriously fail).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "opening population store")
	}
	return &Store{db: db}, nil
}

// OpenDB wraps an already-open *sql.DB, for callers (tests, an in-memory
// fixture) that manage the connection themselves.
func OpenDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('?')
	}
	return b.String()
}

func linkIDArgs(ids []network.LinkID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}

// personsWithFirstLinkIn returns persons whose selected plan's first link
// (link_order = 0) is one of linkIDs, batched per spec §4.6.
func (s *Store) personsWithFirstLinkIn(ctx context.Context, linkIDs []network.LinkID) (map[string]struct{}, error) {
	return s.batchedLinkQuery(ctx, linkIDs, "SELECT DISTINCT person_id FROM route_links WHERE link_order = 0 AND link_id IN (%s)")
}

// personsWithLastLinkOfLegIn returns persons whose selected plan has a leg
// whose last link is one of linkIDs.
func (s *Store) personsWithLastLinkOfLegIn(ctx context.Context, linkIDs []network.LinkID) (map[string]struct{}, error) {
	return s.batchedLinkQuery(ctx, linkIDs, "SELECT DISTINCT person_id FROM route_links WHERE is_last_of_leg = 1 AND link_id IN (%s)")
}

// personsWithAnyLinkIn returns persons whose selected plan touches any of
// linkIDs anywhere along its route.
func (s *Store) personsWithAnyLinkIn(ctx context.Context, linkIDs []network.LinkID) (map[string]struct{}, error) {
	return s.batchedLinkQuery(ctx, linkIDs, "SELECT DISTINCT person_id FROM route_links WHERE link_id IN (%s)")
}

func (s *Store) batchedLinkQuery(ctx context.Context, linkIDs []network.LinkID, queryTemplate string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for start := 0; start < len(linkIDs); start += batchSize {
		end := start + batchSize
		if end > len(linkIDs) {
			end = len(linkIDs)
		}
		batch := linkIDs[start:end]
		query := fmt.Sprintf(queryTemplate, placeholders(len(batch)))
		rows, err := s.db.QueryContext(ctx, query, linkIDArgs(batch)...)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "querying population store")
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var personID string
				if err := rows.Scan(&personID); err != nil {
					return errors.Wrap(err, errors.KindInternal, "scanning person row")
				}
				out[personID] = struct{}{}
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// routelessPersonsWithActivityInside returns persons with no route at all
// but at least one activity location inside the given polygon-membership
// predicate.
func (s *Store) routelessPersonsWithActivityInside(ctx context.Context, inside func(lon, lat float64) bool) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ra.person_id, ra.lon, ra.lat
		FROM routeless_activities ra
		WHERE NOT EXISTS (SELECT 1 FROM route_links rl WHERE rl.person_id = ra.person_id)
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "querying routeless activities")
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var personID string
		var lon, lat float64
		if err := rows.Scan(&personID, &lon, &lat); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scanning routeless activity row")
		}
		if inside(lon, lat) {
			out[personID] = struct{}{}
		}
	}
	return out, rows.Err()
}

func union(dst, src map[string]struct{}) {
	for id := range src {
		dst[id] = struct{}{}
	}
}

// ZoneMembership is the per-zone lookup the filter needs: the zone's
// trip-match modes and resolved link set, plus an activity-containment
// predicate for the zone's polygon (evaluated in the run's projected CRS,
// matching the convention used by the resolver that produced the link set).
type ZoneMembership struct {
	Zone          zonemodel.Zone
	LinkSet       zonenet.ZoneLinkSet
	ActivityInside func(lon, lat float64) bool
}

// Resolve computes the matched person-id set for a run: the union over every
// zone's trip-match rules plus every custom/scaled simulation area, failing
// with KindEmptyPopulation if that union is empty (spec §4.6, §7).
func Resolve(ctx context.Context, store *Store, zones []ZoneMembership, areas []Area) (map[string]struct{}, error) {
	matched := make(map[string]struct{})

	for _, zm := range zones {
		allLinks := zm.LinkSet.AllLinks()

		if zm.Zone.HasTripMatch(zonemodel.MatchStart) {
			persons, err := store.personsWithFirstLinkIn(ctx, allLinks)
			if err != nil {
				return nil, err
			}
			union(matched, persons)
		}
		if zm.Zone.HasTripMatch(zonemodel.MatchEnd) {
			persons, err := store.personsWithLastLinkOfLegIn(ctx, allLinks)
			if err != nil {
				return nil, err
			}
			union(matched, persons)
		}
		if zm.Zone.HasTripMatch(zonemodel.MatchPass) {
			persons, err := store.personsWithAnyLinkIn(ctx, allLinks)
			if err != nil {
				return nil, err
			}
			union(matched, persons)
		}

		if zm.ActivityInside != nil {
			persons, err := store.routelessPersonsWithActivityInside(ctx, zm.ActivityInside)
			if err != nil {
				return nil, err
			}
			union(matched, persons)
		}
	}

	for _, area := range areas {
		linkIDs := make([]network.LinkID, 0, len(area.AllLinks))
		for id := range area.AllLinks {
			linkIDs = append(linkIDs, id)
		}
		persons, err := store.personsWithAnyLinkIn(ctx, linkIDs)
		if err != nil {
			return nil, err
		}
		union(matched, persons)
	}

	if len(matched) == 0 {
		return nil, errors.New(errors.KindEmptyPopulation, "zone and area trip-match union is empty")
	}
	return matched, nil
}
