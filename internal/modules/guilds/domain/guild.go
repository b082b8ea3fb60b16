package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrGuildNotFound is returned when a guild is not registered.
	ErrGuildNotFound = errors.New("guild not registered")

	// ErrGuildAlreadyRegistered is returned when registering a known guild.
	ErrGuildAlreadyRegistered = errors.New("guild already registered")
)

// Guild is a server the bot is a member of.
type Guild struct {
	ID        snowflake.ID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncResult reports what reconciling the registered guilds changed.
type SyncResult struct {
	Created int
	Updated int
	Deleted int
}

// Changed reports whether any guild was created or deleted.
func (r SyncResult) Changed() bool {
	return r.Created > 0 || r.Deleted > 0
}

// SyncPlan is the change set turning a registered set into a current one.
type SyncPlan struct {
	Create []snowflake.ID
	Keep   []snowflake.ID
	Delete []snowflake.ID
}

// PlanSync compares the registered guilds with the current ones. Every
// slice of the plan is sorted.
func PlanSync(registered, current []snowflake.ID) SyncPlan {
	current = UniqueIDs(current)
	registered = UniqueIDs(registered)

	var plan SyncPlan
	for _, id := range current {
		if _, found := slices.BinarySearch(registered, id); found {
			plan.Keep = append(plan.Keep, id)
		} else {
			plan.Create = append(plan.Create, id)
		}
	}
	for _, id := range registered {
		if _, found := slices.BinarySearch(current, id); !found {
			plan.Delete = append(plan.Delete, id)
		}
	}
	return plan
}

// UniqueIDs returns the distinct ids in ascending order.
func UniqueIDs(ids []snowflake.ID) []snowflake.ID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
