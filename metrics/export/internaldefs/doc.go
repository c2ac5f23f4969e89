// Package internaldefs holds the metric names and bucket boundaries shared by
// the Prometheus and OTel exporters, so both emit identical series.
package internaldefs
