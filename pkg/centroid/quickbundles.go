// Package centroid extracts representative centroid streamlines from a bundle
// and normalizes their orientation against a reference centroid.
package centroid

import (
	"fmt"
	"math"

	"tractseg/internal/models"
)

// DefaultMaxClusters caps the number of clusters created by a finite threshold
const DefaultMaxClusters = 10

// Cluster is a group of streamlines together with its mean streamline
type Cluster struct {
	// Centroid is the point-wise mean of the resampled members
	Centroid models.Streamline

	// Indices are the positions of the members in the input bundle
	Indices []int

	// sum accumulates member points so the centroid is an exact mean
	sum []models.Point
}

func (c *Cluster) add(idx int, s models.Streamline) {
	if c.sum == nil {
		c.sum = make([]models.Point, len(s))
		c.Centroid = make(models.Streamline, len(s))
	}
	c.Indices = append(c.Indices, idx)
	n := float64(len(c.Indices))
	for i, p := range s {
		c.sum[i] = c.sum[i].Add(p)
		c.Centroid[i] = c.sum[i].Mul(1 / n)
	}
}

// QuickBundles clusters streamlines in a single pass using the average
// point-wise Euclidean distance between resampled streamlines.
type QuickBundles struct {
	// Threshold is the largest distance at which a streamline joins an
	// existing cluster. math.Inf(1) puts every streamline in one cluster.
	Threshold float64

	// MaxClusters caps how many clusters may be opened. Once reached,
	// streamlines join their nearest cluster regardless of the threshold.
	MaxClusters int

	// NumPoints is the number of points every streamline is resampled to
	NumPoints int
}

// NewQuickBundles creates a clusterer. A non-positive maxClusters uses DefaultMaxClusters.
func NewQuickBundles(numPoints int, threshold float64, maxClusters int) *QuickBundles {
	if maxClusters <= 0 {
		maxClusters = DefaultMaxClusters
	}
	return &QuickBundles{
		Threshold:   threshold,
		MaxClusters: maxClusters,
		NumPoints:   numPoints,
	}
}

// Cluster groups the streamlines. Clusters are returned in creation order.
func (qb *QuickBundles) Cluster(streamlines []models.Streamline) ([]*Cluster, error) {
	if len(streamlines) == 0 {
		return nil, fmt.Errorf("%w: no streamlines to cluster", models.ErrInput)
	}
	if qb.NumPoints < 2 {
		return nil, fmt.Errorf("%w: centroids need at least 2 points, got %d", models.ErrInput, qb.NumPoints)
	}
	if math.IsNaN(qb.Threshold) || qb.Threshold < 0 {
		return nil, fmt.Errorf("%w: invalid clustering threshold %v", models.ErrInput, qb.Threshold)
	}
	maxClusters := qb.MaxClusters
	if maxClusters <= 0 {
		maxClusters = DefaultMaxClusters
	}

	var clusters []*Cluster
	for idx, s := range streamlines {
		if len(s) == 0 {
			return nil, fmt.Errorf("%w: streamline %d has no points", models.ErrInput, idx)
		}
		resampled := s.Resample(qb.NumPoints)

		nearest, nearestDist := -1, math.Inf(1)
		for c, cluster := range clusters {
			d := AveragePointwiseDistance(resampled, cluster.Centroid)
			if d < nearestDist {
				nearest, nearestDist = c, d
			}
		}

		switch {
		case nearest >= 0 && nearestDist < qb.Threshold:
			clusters[nearest].add(idx, resampled)
		case len(clusters) < maxClusters:
			cluster := &Cluster{}
			cluster.add(idx, resampled)
			clusters = append(clusters, cluster)
		default:
			// Cap reached: fall back to the closest cluster
			if nearest < 0 {
				nearest = 0
			}
			clusters[nearest].add(idx, resampled)
		}
	}
	return clusters, nil
}

// Extract resamples every streamline of the bundle to numPoints points,
// clusters them and returns the cluster centroids.
func Extract(bundle *models.Bundle, numPoints int, threshold float64, maxClusters int) ([]models.Streamline, error) {
	if bundle == nil || bundle.Len() == 0 {
		return nil, fmt.Errorf("%w: no streamlines to cluster", models.ErrInput)
	}
	clusters, err := NewQuickBundles(numPoints, threshold, maxClusters).Cluster(bundle.Streamlines)
	if err != nil {
		return nil, err
	}
	centroids := make([]models.Streamline, len(clusters))
	for i, c := range clusters {
		centroids[i] = c.Centroid
	}
	return centroids, nil
}

// AveragePointwiseDistance is the mean Euclidean distance between points at
// the same position of two equal-length streamlines. Streamlines of
// different lengths are infinitely far apart.
func AveragePointwiseDistance(a, b models.Streamline) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var total float64
	for i := range a {
		total += a[i].Distance(b[i])
	}
	return total / float64(len(a))
}
