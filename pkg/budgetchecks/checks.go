// Package budgetchecks validates budget plan configuration against the vendor
// tag taxonomy. Checks never return errors; each reports a pass flag plus the
// plans that failed and why.
package budgetchecks

import (
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"
)

// Category is one bucket of a budget plan.
type Category struct {
	Percentage float64  `json:"percentage"`
	Tags       []string `json:"tags"`
	Required   bool     `json:"required"`
	// savings, hard_limit or free_spend
	Type string `json:"type"`
}

// BudgetPlan maps category name to its definition.
type BudgetPlan map[string]Category

// BudgetPlans maps plan name to plan.
type BudgetPlans map[string]BudgetPlan

func LoadBudgetPlans(path string) (BudgetPlans, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading budget plans %s: %w", path, err)
	}

	var plans BudgetPlans
	if err := yaml.Unmarshal(raw, &plans); err != nil {
		return nil, fmt.Errorf("error parsing budget plans %s: %w", path, err)
	}

	return plans, nil
}

// planTags flattens all category tag lists of one plan, duplicates included.
func planTags(plan BudgetPlan) []string {
	var tags []string

	names := make([]string, 0, len(plan))
	for name := range plan {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tags = append(tags, plan[name].Tags...)
	}

	return tags
}

// CheckNoDuplicateTags fails any plan that lists the same tag under more than
// one category.
func CheckNoDuplicateTags(plans BudgetPlans) (bool, []string) {
	var failures []string

	for name, plan := range plans {
		tags := planTags(plan)

		seen := make(map[string]bool, len(tags))
		for _, tag := range tags {
			if seen[tag] {
				failures = append(failures, name)
				break
			}
			seen[tag] = true
		}
	}

	sort.Strings(failures)

	return len(failures) == 0, failures
}

// CheckPercentagesSum fails any plan whose category percentages do not add to
// exactly 100.
func CheckPercentagesSum(plans BudgetPlans) (bool, []string) {
	var failures []string

	for name, plan := range plans {
		percent := 0.0
		for _, category := range plan {
			percent += category.Percentage
		}

		if percent != 100 {
			failures = append(failures, name)
		}
	}

	sort.Strings(failures)

	return len(failures) == 0, failures
}

// CheckTagListMatch fails any plan whose tag set, deduplicated and with the
// unresolved-vendor sentinel removed, is not exactly the vendor tag universe.
// Failures carry the symmetric difference.
func CheckTagListMatch(plans BudgetPlans, dbTags []string, sentinel string) (bool, map[string][]string) {
	failures := make(map[string][]string)

	dbSet := make(map[string]bool, len(dbTags))
	for _, tag := range dbTags {
		dbSet[tag] = true
	}

	for name, plan := range plans {
		planSet := make(map[string]bool)
		for _, tag := range planTags(plan) {
			if tag != sentinel {
				planSet[tag] = true
			}
		}

		var diff []string
		for tag := range planSet {
			if !dbSet[tag] {
				diff = append(diff, tag)
			}
		}
		for tag := range dbSet {
			if !planSet[tag] {
				diff = append(diff, tag)
			}
		}

		if len(diff) > 0 {
			sort.Strings(diff)
			failures[name] = diff
		}
	}

	return len(failures) == 0, failures
}
