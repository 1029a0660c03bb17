package permission

import (
	"fmt"

	"github.com/icubam/icubam/internal/shared/authorization"
)

var defaultPolicies = [][]string{
	{string(authorization.RoleAdmin), "*", "*"},

	{string(authorization.RoleManager), authorization.ResourceICU, authorization.ActionManage},
	{string(authorization.RoleManager), authorization.ResourceUser, authorization.ActionManage},
	{string(authorization.RoleManager), authorization.ResourceSchedule, authorization.ActionRead},

	{string(authorization.RoleOperator), authorization.ResourceBedCount, authorization.ActionWrite},
	{string(authorization.RoleOperator), authorization.ResourceICU, authorization.ActionRead},

	{string(authorization.RoleExternal), authorization.ResourceBedCount, authorization.ActionRead},
	{string(authorization.RoleExternal), authorization.ResourceRegion, authorization.ActionRead},
	{string(authorization.RoleExternal), authorization.ResourceICU, authorization.ActionRead},
}

// managers can do everything operators can.
var defaultGroupings = [][]string{
	{string(authorization.RoleManager), string(authorization.RoleOperator)},
}

// seed adds the default rules missing from the loaded policy. With an
// adapter attached every Add writes its own row; nothing is rewritten.
func (e *Enforcer) seed() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, policy := range defaultPolicies {
		has, err := e.enforcer.HasPolicy(policy)
		if err != nil {
			return fmt.Errorf("failed to look up policy %v: %w", policy, err)
		}
		if has {
			continue
		}
		if _, err := e.enforcer.AddPolicy(policy); err != nil {
			e.logger.Errorw("failed to add permission policy",
				"error", err,
				"role", policy[0],
				"resource", policy[1],
				"action", policy[2])
			return fmt.Errorf("failed to add policy [%s, %s, %s]: %w",
				policy[0], policy[1], policy[2], err)
		}
	}
	for _, g := range defaultGroupings {
		has, err := e.enforcer.HasGroupingPolicy(g)
		if err != nil {
			return fmt.Errorf("failed to look up role inheritance %v: %w", g, err)
		}
		if has {
			continue
		}
		if _, err := e.enforcer.AddGroupingPolicy(g); err != nil {
			return fmt.Errorf("failed to add role inheritance %s -> %s: %w", g[0], g[1], err)
		}
	}
	return nil
}
