package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureReport(t *testing.T) {
	t.Run("BreadcrumbsPrependOutermostFirst", func(t *testing.T) {
		f := Fail("Header was missing").WithBreadcrumb("key").WithBreadcrumb("HEADERS")

		report := AsFailure(f).Report()
		assert.Equal(t, []string{"HEADERS", "key"}, report.Breadcrumbs)
		assert.Equal(t, []string{"Header was missing"}, report.Messages)
	})

	t.Run("ListIndexJoinsWithoutDot", func(t *testing.T) {
		f := Mismatch("number", `"x"`).WithBreadcrumb("id").WithBreadcrumb("[0]").WithBreadcrumb("items").WithBreadcrumb("BODY")
		assert.Equal(t, "BODY.items[0].id", AsFailure(f).Report().Path())
	})

	t.Run("Text", func(t *testing.T) {
		f := Fail(`Expected key named "id" was missing`).WithBreadcrumb("id").WithBreadcrumb("BODY").WithScenario("get product")
		assert.Equal(t, "In scenario \"get product\"\n>> BODY.id\n\nExpected key named \"id\" was missing", AsFailure(f).Report().Text())
	})

	t.Run("SuccessIgnoresBreadcrumb", func(t *testing.T) {
		assert.True(t, Breadcrumb(Succeed(), "BODY").IsSuccess())
	})
}

func TestResultsReport(t *testing.T) {
	fluffy := FailFluffy("Expected method GET, actual was POST")
	specific := Fail("Expected number, actual was \"abc\"").WithBreadcrumb("id").WithBreadcrumb("PATH")

	t.Run("FluffSuppressed", func(t *testing.T) {
		rs := Results{fluffy, specific}
		report := rs.Report(PathNotRecognized)
		assert.Contains(t, report, "Expected number")
		assert.NotContains(t, report, "method")
		assert.NotContains(t, report, PathNotRecognized)
	})

	t.Run("AllFluffyUsesDefault", func(t *testing.T) {
		rs := Results{fluffy}
		report := rs.Report(PathNotRecognized)
		require.Contains(t, report, PathNotRecognized)
		assert.Contains(t, report, "Expected method GET")
	})

	t.Run("FluffInheritedThroughBreadcrumbs", func(t *testing.T) {
		wrapped := fluffy.WithBreadcrumb("METHOD")
		assert.True(t, AsFailure(wrapped).IsFluffy())
		assert.Empty(t, Results{wrapped}.WithoutFluff())
	})

	t.Run("Counts", func(t *testing.T) {
		rs := Results{Succeed(), specific, fluffy}
		assert.Equal(t, 1, rs.SuccessCount())
		assert.Equal(t, 2, rs.FailureCount())
		assert.True(t, rs.HasFailures())
		assert.True(t, rs.ToResultIfAny().IsSuccess())
		assert.False(t, Results{specific}.ToResultIfAny().IsSuccess())
	})
}
