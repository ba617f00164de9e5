package specmatic

import (
	"strings"

	"github.com/EmmanuelMendoza/specmatic/result"
)

// CompatibilityResults holds one result per scenario of the older contract.
type CompatibilityResults struct {
	result.Results
}

// Report renders the failures, or a one-line verdict when there are none.
func (c CompatibilityResults) Report() string {
	if c.Success() {
		return "The newer contract is backward compatible"
	}
	reports := make([]string, 0, c.FailureCount())
	for _, f := range c.Failures() {
		reports = append(reports, f.Report().Text())
	}
	return strings.Join(reports, "\n\n")
}

// TestBackwardCompatibility checks that newer can replace older: every
// request an older scenario accepted is still accepted by a newer scenario
// with the same method, path and status, and the older response still
// describes what the newer one sends.
func TestBackwardCompatibility(older, newer *Feature) CompatibilityResults {
	var results result.Results
	for _, old := range older.Scenarios {
		if old.KafkaMessage != nil {
			results = append(results, kafkaCompatibility(old, newer))
			continue
		}
		results = append(results, scenarioCompatibility(old, newer))
	}
	return CompatibilityResults{Results: results}
}

func scenarioCompatibility(old *Scenario, newer *Feature) result.Result {
	variants, err := old.GenerateBackwardCompatibilityScenarios()
	if err != nil {
		return result.Fail("%s", err).WithScenario(old.Name)
	}

	for _, variant := range variants {
		candidates := newer.scenariosLike(variant)
		if len(candidates) == 0 {
			return result.Fail("This API exists in the old contract but not in the new contract").WithScenario(old.Name)
		}
		var first result.Result
		compatible := false
		for _, candidate := range candidates {
			res := compareScenarios(variant, candidate)
			if res.IsSuccess() {
				compatible = true
				break
			}
			if first == nil {
				first = res
			}
		}
		if !compatible {
			return first.WithScenario(old.Name)
		}
	}
	return result.Succeed()
}

func compareScenarios(old, candidate *Scenario) result.Result {
	oldR, newR := old.Resolver(), candidate.Resolver()
	if res := candidate.Request.Encompasses(old.Request, newR, oldR); !res.IsSuccess() {
		return res.WithBreadcrumb("REQUEST")
	}
	return result.Breadcrumb(old.Response.Encompasses(candidate.Response, oldR, newR), "RESPONSE")
}

func kafkaCompatibility(old *Scenario, newer *Feature) result.Result {
	matches := newer.LookupKafkaScenario(*old.KafkaMessage, old.Resolver())
	if len(matches) == 0 {
		return result.Fail("This message exists in the old contract but not in the new contract").WithScenario(old.Name)
	}
	for _, m := range matches {
		if m.Result.IsSuccess() {
			return m.Result
		}
	}
	return matches[0].Result.WithScenario(old.Name)
}
