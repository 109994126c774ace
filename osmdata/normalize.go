package osmdata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/paulmach/osm"
	"github.com/rs/zerolog"

	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/metrics"
)

// Normalize decodes an OSM API payload into Data.
//
// Elements are decoded one at a time so a malformed node or way only drops
// itself. Nodes are indexed before any way is resolved, and a way that
// references an unknown node is dropped entirely. A syntax error part way
// through keeps whatever was decoded before it. Only a payload without an
// <osm> root returns a *ParseError.
func Normalize(payload []byte, bounds geo.Bounds, logger zerolog.Logger) (*Data, error) {
	data := &Data{
		Bounds: bounds,
		Nodes:  make(map[osm.NodeID]Node),
	}

	var (
		rawWays []*osm.Way
		sawRoot bool
	)

	dec := xml.NewDecoder(bytes.NewReader(payload))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !sawRoot {
				return nil, &ParseError{Err: err}
			}
			logger.Warn().Err(err).
				Int("nodes", len(data.Nodes)).
				Int("ways", len(rawWays)).
				Msg("truncated map payload, keeping decoded elements")
			break
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "osm":
			sawRoot = true
		case "bounds":
			var b osm.Bounds
			if err := dec.DecodeElement(&b, &se); err != nil {
				metrics.OSMSkippedElementsTotal.WithLabelValues("bounds").Inc()
				logger.Warn().Err(err).Msg("skipping malformed bounds")
				continue
			}
			data.Declared = &geo.Bounds{MinLat: b.MinLat, MinLng: b.MinLon, MaxLat: b.MaxLat, MaxLng: b.MaxLon}
		case "node":
			var n osm.Node
			if err := dec.DecodeElement(&n, &se); err != nil {
				data.SkippedNodes++
				metrics.OSMSkippedElementsTotal.WithLabelValues("node").Inc()
				logger.Warn().Err(err).Msg("skipping malformed node")
				continue
			}
			node := Node{
				ID:       n.ID,
				Location: geo.LatLng{Lat: n.Lat, Lng: n.Lon},
				Tags:     n.Tags,
			}
			data.Nodes[n.ID] = node
			if poi, ok := pointOfInterest(node); ok {
				data.POIs = append(data.POIs, poi)
			}
		case "way":
			w := new(osm.Way)
			if err := dec.DecodeElement(w, &se); err != nil {
				data.SkippedWays++
				metrics.OSMSkippedElementsTotal.WithLabelValues("way").Inc()
				logger.Warn().Err(err).Msg("skipping malformed way")
				continue
			}
			rawWays = append(rawWays, w)
		}
	}

	if !sawRoot {
		return nil, &ParseError{Err: errors.New("no <osm> root element")}
	}

	for _, w := range rawWays {
		way, ok := resolveWay(w, data.Nodes)
		if !ok {
			data.SkippedWays++
			metrics.OSMSkippedElementsTotal.WithLabelValues("way").Inc()
			logger.Debug().Int64("way", int64(w.ID)).Msg("dropping way with unresolvable node")
			continue
		}
		data.Ways = append(data.Ways, way)
	}

	logger.Debug().
		Int("nodes", len(data.Nodes)).
		Int("ways", len(data.Ways)).
		Int("pois", len(data.POIs)).
		Int("skipped_nodes", data.SkippedNodes).
		Int("skipped_ways", data.SkippedWays).
		Msg("normalized map payload")

	return data, nil
}

// pointOfInterest requires both a name and an amenity on the same node.
func pointOfInterest(n Node) (POI, bool) {
	name := n.Tags.Find("name")
	amenity := n.Tags.Find("amenity")
	if name == "" || amenity == "" {
		return POI{}, false
	}
	return POI{
		Location: n.Location,
		Name:     name,
		Category: amenity,
	}, true
}

func resolveWay(w *osm.Way, nodes map[osm.NodeID]Node) (Way, bool) {
	points := make([]geo.LatLng, 0, len(w.Nodes))
	for _, wn := range w.Nodes {
		n, ok := nodes[wn.ID]
		if !ok {
			return Way{}, false
		}
		points = append(points, n.Location)
	}
	return Way{ID: w.ID, Points: points}, true
}
