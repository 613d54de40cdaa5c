package core

import (
	"context"
	"fmt"
	"strings"

	"tripgroups/pkg/domain"
)

// SaveConfiguration persists the current arrangement under name and
// prepends the stored record to the local list.
func (e *Engine) SaveConfiguration(ctx context.Context, name, description string) (domain.GroupConfiguration, error) {
	var saved domain.GroupConfiguration
	err := e.run(ctx, "save_configuration", func(ctx context.Context) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return domain.NewError(domain.CodeInvalidArgument, "configuration name is required")
		}
		if e.configStore == nil {
			return domain.NewError(domain.CodePersistence, "no configuration store configured")
		}

		e.mu.Lock()
		groups := domain.CloneGroups(e.state.groups)
		record := domain.GroupConfiguration{
			Name:              name,
			Description:       description,
			AdventureID:       e.adventureID,
			VendorID:          e.vendorID,
			GroupCount:        len(groups),
			TotalParticipants: domain.TotalParticipants(groups),
			Snapshot:          groups,
			CreatedAt:         e.clock.Now(),
		}
		e.mu.Unlock()

		stored, err := e.configStore.CreateConfiguration(ctx, record)
		if err != nil {
			return domain.WrapError(domain.CodePersistence, "save configuration "+name, err)
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		e.configs = append([]domain.GroupConfiguration{domain.CloneConfiguration(stored)}, e.configs...)
		saved = domain.CloneConfiguration(stored)
		return nil
	})
	return saved, err
}

// ListConfigurations refreshes the local list from the store.
func (e *Engine) ListConfigurations(ctx context.Context) ([]domain.GroupConfiguration, error) {
	var out []domain.GroupConfiguration
	err := e.run(ctx, "list_configurations", func(ctx context.Context) error {
		if e.configStore == nil {
			return domain.NewError(domain.CodePersistence, "no configuration store configured")
		}
		records, err := e.configStore.ListConfigurations(ctx, e.vendorID)
		if err != nil {
			return domain.WrapError(domain.CodePersistence, "list configurations", err)
		}
		sorted := sortConfigurations(records)

		e.mu.Lock()
		defer e.mu.Unlock()
		e.configs = sorted
		out = domain.CloneConfigurations(sorted)
		return nil
	})
	return out, err
}

// Configurations returns the locally known configurations, newest first.
func (e *Engine) Configurations() []domain.GroupConfiguration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneConfigurations(e.configs)
}

// LoadConfiguration replaces the live groups with a saved snapshot. Members
// missing from the available pool are kept and reported as a warning.
func (e *Engine) LoadConfiguration(ctx context.Context, configID string) ([]domain.Group, error) {
	var out []domain.Group
	err := e.run(ctx, "load_configuration", func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		var (
			record domain.GroupConfiguration
			found  bool
		)
		for _, c := range e.configs {
			if c.ID == configID {
				record, found = domain.CloneConfiguration(c), true
				break
			}
		}
		if !found {
			return domain.ErrNotFound(domain.EntityConfiguration, configID)
		}

		groups := domain.CloneGroups(record.Snapshot)
		for i := range groups {
			groups[i].Version = e.nextVersion()
			groups[i].Compatibility = normalizeCompatibility(groups[i].Compatibility)
		}
		if _, err := e.runInTransaction(ctx, func(tx *transaction) error {
			tx.replaceGroups(groups)
			return nil
		}); err != nil {
			return err
		}
		e.cacheScoresLocked(e.state.groups)
		e.commitHistoryLocked("load_configuration")
		e.recomputeNeutralLocked()

		if stale := e.staleMembersLocked(); len(stale) > 0 {
			e.addWarningLocked(Warning{
				Code:    domain.CodeStaleConfiguration,
				Message: fmt.Sprintf("stale configuration %s: %d participant(s) not in the current pool: %s", configID, len(stale), strings.Join(stale, ", ")),
			})
		}
		out = domain.CloneGroups(e.state.groups)
		return nil
	})
	return out, err
}

// staleMembersLocked lists group members absent from the available pool.
func (e *Engine) staleMembersLocked() []string {
	var stale []string
	for _, g := range e.state.groups {
		for _, p := range g.Participants {
			if _, ok := e.state.findAvailable(p.ID); !ok {
				stale = append(stale, string(p.ID))
			}
		}
	}
	return stale
}
