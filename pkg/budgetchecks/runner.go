package budgetchecks

import (
	"fmt"
	"sort"
	"strings"
)

// Results aggregates the three checks. Failing plans are keyed by rule
// description; the values name the plans and their specific discrepancies.
type Results struct {
	AllPassed bool
	Failures  map[string][]string
}

const (
	ruleNoDuplicates = "Has no duplicates"
	rulePercentages  = "Category percents add to 100"
	ruleTagsMatch    = "All available tags used"
)

// RunChecks runs every rule over the plans, prints a per-rule summary and
// returns the aggregate. Reporting glue around the checks above.
func RunChecks(plans BudgetPlans, dbTags []string, sentinel string) Results {
	results := Results{AllPassed: true, Failures: make(map[string][]string)}

	fmt.Println("Below are checks that are run against your budget plan")

	dupPass, dupFailures := CheckNoDuplicateTags(plans)
	report(&results, ruleNoDuplicates, dupPass, dupFailures)

	pctPass, pctFailures := CheckPercentagesSum(plans)
	report(&results, rulePercentages, pctPass, pctFailures)

	tagPass, tagFailures := CheckTagListMatch(plans, dbTags, sentinel)
	var tagLines []string
	for plan, diff := range tagFailures {
		tagLines = append(tagLines, fmt.Sprintf("%s: %v", plan, diff))
	}
	sort.Strings(tagLines)
	report(&results, ruleTagsMatch, tagPass, tagLines)

	return results
}

func report(results *Results, rule string, pass bool, failures []string) {
	if pass {
		fmt.Printf("%s: All PASSED\n", rule)
		return
	}

	results.AllPassed = false
	results.Failures[rule] = failures
	fmt.Printf("%s: FAILING: %s\n", rule, strings.Join(failures, ", "))
}
