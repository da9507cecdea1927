package search

import (
	"github.com/viterin/vek/vek32"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// SquaredL2 returns ||a - b||², computed as ||a||² + ||b||² - 2 a·b
func SquaredL2(a, b []float32) float32 {
	return vek32.Dot(a, a) + vek32.Dot(b, b) - 2*vek32.Dot(a, b)
}

// NegativeDot returns -a·b, so that smaller values are closer
func NegativeDot(a, b []float32) float32 {
	return -vek32.Dot(a, b)
}

// Distance scores b against a under the given measure; smaller is closer.
// DistanceUnspecified scores as squared L2.
func Distance(measure scann.DistanceMeasure, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, scann.NewError("distance").InvalidArgument().
			Msgf("vector dimensions mismatch: %d != %d", len(a), len(b)).Err()
	}
	scorer, err := scorerFor(measure)
	if err != nil {
		return 0, err
	}
	return scorer.distance(a, b, vek32.Dot(a, a)), nil
}

// scorer computes distances from a fixed query whose squared norm is known
type scorer struct {
	measure scann.DistanceMeasure
}

func scorerFor(measure scann.DistanceMeasure) (scorer, error) {
	switch measure {
	case scann.DistanceUnspecified:
		return scorer{measure: scann.DistanceSquaredL2}, nil
	case scann.DistanceSquaredL2, scann.DistanceDotProduct:
		return scorer{measure: measure}, nil
	default:
		return scorer{}, scann.NewError("distance").Unimplemented().
			Msgf("unsupported distance measure: %v", measure).Err()
	}
}

// distance scores v against query; queryNorm is ||query||²
func (s scorer) distance(query, v []float32, queryNorm float32) float32 {
	dot := vek32.Dot(query, v)
	if s.measure == scann.DistanceDotProduct {
		return -dot
	}
	return queryNorm + vek32.Dot(v, v) - 2*dot
}
