package geo

import (
	"errors"
	"iter"
	"sort"
	"sync"

	"nearme/pkg/geodist"
)

// ErrInvalidCoordinate is returned when a latitude/longitude pair is out of range.
// The write is rejected and any previously stored coordinate is kept.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a last-write-wins lat/lng pair, one per user.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is within lat [-90,90] and lng [-180,180].
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Index holds each user's last known coordinate and answers nearby queries.
// Writes to different users never contend; sync.Map gives per-key atomicity
// without a global lock.
type Index struct {
	points sync.Map // userID (uint) -> Coordinate
}

func NewIndex() *Index {
	return &Index{}
}

// SetLocation overwrites the user's coordinate. Last write wins.
func (ix *Index) SetLocation(userID uint, c Coordinate) error {
	if !c.Valid() {
		return ErrInvalidCoordinate
	}
	ix.points.Store(userID, c)
	return nil
}

// Get returns the user's stored coordinate, if any.
func (ix *Index) Get(userID uint) (Coordinate, bool) {
	v, ok := ix.points.Load(userID)
	if !ok {
		return Coordinate{}, false
	}
	return v.(Coordinate), true
}

// Remove drops the user's coordinate from the index.
func (ix *Index) Remove(userID uint) {
	ix.points.Delete(userID)
}

// Len returns the number of indexed users.
func (ix *Index) Len() int {
	n := 0
	ix.points.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

type neighbor struct {
	userID uint
	dist   float64
}

// QueryNearby returns the users whose stored coordinate lies within radiusMeters
// of center (inclusive), ordered by ascending distance with ties broken by user
// id. The result is computed against a snapshot of the index taken at call time,
// so ranging over the returned sequence more than once replays the same users.
func (ix *Index) QueryNearby(center Coordinate, radiusMeters float64) iter.Seq[uint] {
	pairs := ix.QueryNearbyDist(center, radiusMeters)
	return func(yield func(uint) bool) {
		for id := range pairs {
			if !yield(id) {
				return
			}
		}
	}
}

// QueryNearbyDist is QueryNearby with each user's distance in meters, measured
// against the same snapshot that produced the ordering. Concurrent writes
// landing after the call never skew a yielded distance relative to its rank.
func (ix *Index) QueryNearbyDist(center Coordinate, radiusMeters float64) iter.Seq2[uint, float64] {
	var hits []neighbor
	ix.points.Range(func(k, v any) bool {
		c := v.(Coordinate)
		d := geodist.HaversineM(center.Latitude, center.Longitude, c.Latitude, c.Longitude)
		if d <= radiusMeters {
			hits = append(hits, neighbor{userID: k.(uint), dist: d})
		}
		return true
	})
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].userID < hits[j].userID
	})
	return func(yield func(uint, float64) bool) {
		for _, h := range hits {
			if !yield(h.userID, h.dist) {
				return
			}
		}
	}
}

// DistanceM returns the distance in meters between the stored coordinates of
// two users. ok is false when either user has no coordinate.
func (ix *Index) DistanceM(a, b uint) (float64, bool) {
	ca, okA := ix.Get(a)
	cb, okB := ix.Get(b)
	if !okA || !okB {
		return 0, false
	}
	return geodist.HaversineM(ca.Latitude, ca.Longitude, cb.Latitude, cb.Longitude), true
}
