package schedule

import (
	"sort"
	"time"

	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/jobconfig"
)

// Run is the minimal view of a completed backup run (one catalog Entity)
// retention evaluation needs: its age-ordering key and archive type.
type Run struct {
	EntityID    int64
	ArchiveType catalog.ArchiveType
	CreatedAt   time.Time
}

// Evaluate applies rule to runs (already filtered or not to rule's archive
// type — Evaluate filters internally) and returns the EntityIDs eligible for
// purge: runs are ordered youngest-first, keeping at least minKeep and at
// most maxKeep; any run beyond minKeep whose age exceeds maxAge days is
// eligible for purge.
func Evaluate(rule jobconfig.PersistenceEntry, runs []Run, now time.Time) []int64 {
	var matching []Run
	for _, r := range runs {
		if r.ArchiveType == rule.ArchiveType {
			matching = append(matching, r)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	var purge []int64
	for i, r := range matching {
		if rule.MinKeep == jobconfig.KeepAll || i < rule.MinKeep {
			continue
		}
		if rule.MaxKeep != jobconfig.KeepUnlimited && i >= rule.MaxKeep {
			purge = append(purge, r.EntityID)
			continue
		}
		if rule.MaxAgeDays == jobconfig.AgeForever {
			continue
		}
		age := now.Sub(r.CreatedAt)
		if age > time.Duration(rule.MaxAgeDays)*24*time.Hour {
			purge = append(purge, r.EntityID)
		}
	}
	return purge
}

// EvaluateAll applies every rule in rules to runs and returns the union of
// eligible EntityIDs (deduplicated), for a job's whole persistence list.
func EvaluateAll(rules []jobconfig.PersistenceEntry, runs []Run, now time.Time) []int64 {
	seen := map[int64]bool{}
	var purge []int64
	for _, rule := range rules {
		for _, id := range Evaluate(rule, runs, now) {
			if !seen[id] {
				seen[id] = true
				purge = append(purge, id)
			}
		}
	}
	return purge
}
