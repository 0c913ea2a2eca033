package common

import (
	"fmt"
	"net/http"
)

type Metric string

const (
	MetricPopulation Metric = "population"
	MetricCrime      Metric = "crime"
	MetricEmployment Metric = "employment"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricPopulation, MetricCrime, MetricEmployment:
		return Metric(s), nil
	}
	return "", NewUserVisibleError(http.StatusBadRequest, fmt.Sprintf("unknown metric %q", s))
}

type ChartMode string

const (
	ModeLine ChartMode = "line"
	ModeBar  ChartMode = "bar"
)

func ParseChartMode(s string) (ChartMode, error) {
	switch ChartMode(s) {
	case "":
		return ModeLine, nil
	case ModeLine, ModeBar:
		return ChartMode(s), nil
	}
	return "", NewUserVisibleError(http.StatusBadRequest, fmt.Sprintf("unknown chart mode %q", s))
}

// Role says what a query dimension holds. The decoder needs to know which
// dimension carries entities, which carries periods and which splits a
// metric into categories.
type Role string

const (
	RoleEntity   Role = "entity"
	RolePeriod   Role = "period"
	RoleCategory Role = "category"
	RoleOther    Role = "other"
)

type MetricStyle struct {
	ReadableName string
	Unit         string
	Color        string
}

var MetricStyles = map[Metric]MetricStyle{
	MetricPopulation: {ReadableName: "population", Unit: "persons", Color: "#007bff"},
	MetricCrime:      {ReadableName: "crime rate", Unit: "offences", Color: "#dc3545"},
	MetricEmployment: {ReadableName: "employment rate", Unit: "%", Color: "#198754"},
}

// WholeCountryCode is the entity code the API uses for the country total.
const WholeCountryCode = "SSS"

// WholeCountryLabel is what the API calls the country total.
const WholeCountryLabel = "WHOLE COUNTRY"
