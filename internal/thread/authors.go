package thread

import (
	"context"

	"github.com/dyluth/tally/pkg/relay"
	"github.com/rs/zerolog/log"
)

// Directory batch-resolves author profiles.
type Directory struct {
	pool      Querier
	store     relay.Store // optional
	batchSize int
}

// NewDirectory creates a directory. store may be nil.
func NewDirectory(pool Querier, store relay.Store, batchSize int) *Directory {
	if batchSize < 1 {
		batchSize = DefaultLimits().BatchSize
	}
	return &Directory{pool: pool, store: store, batchSize: batchSize}
}

// ResolveAuthors returns profiles for the given authors. Authors with no
// profile, or only unparseable ones, are absent from the map. Never fails:
// relay and store problems degrade to missing profiles.
func (d *Directory) ResolveAuthors(ctx context.Context, pubkeys []relay.PubKey, endpoints []string) map[relay.PubKey]relay.Profile {
	wanted := dedupeKeys(pubkeys)
	profiles := make(map[relay.PubKey]relay.Profile, len(wanted))
	if len(wanted) == 0 {
		return profiles
	}

	if d.store != nil {
		cached, err := d.store.GetProfiles(ctx, wanted)
		if err != nil {
			log.Debug().Err(err).Msg("Profile store lookup failed")
		}
		for pk, p := range cached {
			profiles[pk] = p
		}
	}

	var missing []relay.PubKey
	for _, pk := range wanted {
		if _, ok := profiles[pk]; !ok {
			missing = append(missing, pk)
		}
	}

	// Several metadata events per author are common; the newest parseable wins
	newest := make(map[relay.PubKey]relay.Profile)
	for _, batch := range partition(missing, d.batchSize) {
		if ctx.Err() != nil {
			break
		}
		res := d.pool.Query(ctx, endpoints, relay.Filter{
			Kinds:   []int{relay.KindProfile},
			Authors: batch,
		})
		for _, upd := range res.Profiles {
			p, err := relay.ParseProfile(upd.Author, upd.Content, upd.CreatedAt)
			if err != nil {
				log.Debug().Str("pubkey", upd.Author.Short()).Err(err).Msg("Ignoring unparseable profile")
				continue
			}
			if cur, ok := newest[upd.Author]; !ok || p.UpdatedAt > cur.UpdatedAt {
				newest[upd.Author] = p
			}
		}
	}

	fetched := make([]relay.Profile, 0, len(newest))
	for _, pk := range missing {
		if p, ok := newest[pk]; ok {
			profiles[pk] = p
			fetched = append(fetched, p)
		}
	}

	if d.store != nil && len(fetched) > 0 {
		if err := d.store.PutProfiles(ctx, fetched...); err != nil {
			log.Debug().Err(err).Msg("Profile store write failed")
		}
	}

	return profiles
}

func dedupeKeys(keys []relay.PubKey) []relay.PubKey {
	seen := make(map[relay.PubKey]struct{}, len(keys))
	out := make([]relay.PubKey, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
