package bootstrap

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
)

// Service incrementally mirrors the remote name list into the local index.
// A run only re-processes shards whose content digest changed, and a full
// namespace check is spread over the days of the current month.
type Service interface {
	Run(ctx context.Context) (domain.BootstrapStats, error)
}

type service struct {
	log    zerolog.Logger
	lister domain.NameLister
	repo   domain.PackageRepo
	// slot pins the day-of-month slice of shards this run checks; 0 means
	// the actual current day.
	slot int
}

func NewService(log zerolog.Logger, lister domain.NameLister, repo domain.PackageRepo, slot int) Service {
	return &service{
		log:    log.With().Str("module", "bootstrap").Logger(),
		lister: lister,
		repo:   repo,
		slot:   slot,
	}
}

func (s *service) Run(ctx context.Context) (domain.BootstrapStats, error) {
	var stats domain.BootstrapStats

	names, err := s.lister.ListNames(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "failed to list remote names")
	}
	sort.Strings(names)

	names, err = s.dueNames(ctx, names)
	if err != nil {
		return stats, err
	}
	if len(names) == 0 {
		s.log.Info().Msg("No shards due this run")
		return stats, nil
	}

	letters, shards := groupByLetter(names)

	for _, letter := range letters {
		inserted, updated, err := s.processShard(ctx, letter, shards[letter])
		if err != nil {
			return stats, errors.Wrapf(err, "failed to process shard %s", letter)
		}
		stats.ShardsChecked++
		if updated {
			stats.ShardsUpdated++
		}
		stats.NamesInserted += inserted
	}

	return stats, nil
}

// dueNames narrows the sorted remote list to the shards assigned to this
// run's day-of-month slot. On the first-ever run, when no shard state exists,
// the entire namespace is due.
func (s *service) dueNames(ctx context.Context, names []string) ([]string, error) {
	states, err := s.repo.ShardStates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load shard states")
	}
	if len(states) == 0 {
		return names, nil
	}

	letters := shardLetters(states, names)

	now := time.Now()
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()

	slot := s.slot
	if slot == 0 {
		slot = now.Day()
	}

	shardsPerDay := (len(letters) + daysInMonth - 1) / daysInMonth

	start := (slot - 1) * shardsPerDay
	if start >= len(letters) {
		return nil, nil
	}
	end := start + shardsPerDay
	if end > len(letters) {
		end = len(letters)
	}

	due := make(map[string]bool, end-start)
	for _, letter := range letters[start:end] {
		due[letter] = true
	}

	s.log.Debug().Int("slot", slot).Int("shards", end-start).Msg("selected due shards")

	filtered := names[:0]
	for _, name := range names {
		if name != "" && due[name[:1]] {
			filtered = append(filtered, name)
		}
	}

	return filtered, nil
}

// shardLetters merges the tracked shard letters with the letters present in
// the remote list. A shard never committed, say after a run aborted partway
// through the first pass, or a brand-new first character, still joins the
// rotation instead of being stranded outside the state table.
func shardLetters(states []domain.ShardState, names []string) []string {
	seen := make(map[string]bool)
	var letters []string

	for _, st := range states {
		if !seen[st.Letter] {
			seen[st.Letter] = true
			letters = append(letters, st.Letter)
		}
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if letter := name[:1]; !seen[letter] {
			seen[letter] = true
			letters = append(letters, letter)
		}
	}

	sort.Strings(letters)
	return letters
}

// groupByLetter splits the sorted name list into shards by first character,
// preserving list order inside each shard so digests are stable.
func groupByLetter(names []string) ([]string, map[string][]string) {
	var letters []string
	shards := make(map[string][]string)

	for _, name := range names {
		if name == "" {
			continue
		}
		letter := name[:1]
		if _, ok := shards[letter]; !ok {
			letters = append(letters, letter)
		}
		shards[letter] = append(shards[letter], name)
	}

	return letters, shards
}

// processShard digests one shard's member list, and commits the new names and
// the new hash only when the digest differs from the stored one. Names are
// written before the hash inside one transaction, so a crash never records a
// hash without its names.
func (s *service) processShard(ctx context.Context, letter string, members []string) (int, bool, error) {
	sum := md5.Sum([]byte(strings.Join(members, "")))
	digest := hex.EncodeToString(sum[:])

	state, err := s.repo.GetShardState(ctx, letter)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to load shard state")
	}

	if state != nil && state.Hash == digest {
		s.log.Debug().Str("letter", letter).Msg("shard unchanged, skipping")
		return 0, false, nil
	}

	var newNames []string
	if state == nil {
		// First pass over this shard: nothing can be present yet.
		newNames = members
	} else {
		for _, name := range members {
			exists, err := s.repo.ContainsName(ctx, name)
			if err != nil {
				return 0, false, errors.Wrap(err, "failed to check name presence")
			}
			if !exists {
				newNames = append(newNames, name)
			}
		}
	}

	if err := s.repo.CommitShard(ctx, letter, digest, newNames); err != nil {
		return 0, false, err
	}

	s.log.Info().Str("letter", letter).Int("inserted", len(newNames)).Int("members", len(members)).Msg("Processed shard")

	return len(newNames), true, nil
}
