package osmdata

import (
	"errors"
	"testing"

	"github.com/paulmach/osm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olablt/gio-pipmap/geo"
)

var joesBounds = geo.Bounds{MinLat: 34.39, MinLng: -118.58, MaxLat: 34.40, MaxLng: -118.57}

const joesPayload = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
 <bounds minlat="34.3900000" minlon="-118.5800000" maxlat="34.4000000" maxlon="-118.5700000"/>
 <node id="1" visible="true" version="1" lat="34.3950000" lon="-118.5750000">
  <tag k="name" v="Joe's"/>
  <tag k="amenity" v="pub"/>
 </node>
 <node id="2" visible="true" version="1" lat="34.3960000" lon="-118.5740000"/>
 <way id="10" visible="true" version="1">
  <nd ref="1"/>
  <nd ref="2"/>
  <tag k="highway" v="residential"/>
 </way>
</osm>`

func TestNormalize_JoesPub(t *testing.T) {
	data, err := Normalize([]byte(joesPayload), joesBounds, zerolog.Nop())
	require.NoError(t, err)

	assert.Len(t, data.Nodes, 2)
	require.Len(t, data.Ways, 1)
	assert.Equal(t, osm.WayID(10), data.Ways[0].ID)
	assert.Equal(t, []geo.LatLng{
		{Lat: 34.395, Lng: -118.575},
		{Lat: 34.396, Lng: -118.574},
	}, data.Ways[0].Points)

	require.Len(t, data.POIs, 1)
	assert.Equal(t, POI{
		Location: geo.LatLng{Lat: 34.395, Lng: -118.575},
		Name:     "Joe's",
		Category: "pub",
	}, data.POIs[0])

	require.NotNil(t, data.Declared)
	assert.InDelta(t, -118.58, data.Declared.MinLng, 1e-9)
	assert.Equal(t, joesBounds, data.Bounds)
	assert.False(t, data.Empty())
}

func TestNormalize_DropsWayWithMissingNode(t *testing.T) {
	payload := `<osm version="0.6">
 <node id="1" lat="1.0" lon="2.0"/>
 <way id="7"><nd ref="1"/><nd ref="999"/></way>
</osm>`

	data, err := Normalize([]byte(payload), joesBounds, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, data.Ways)
	assert.Equal(t, 1, data.SkippedWays)
	assert.Len(t, data.Nodes, 1)
}

func TestNormalize_POIRequiresNameAndAmenity(t *testing.T) {
	payload := `<osm version="0.6">
 <node id="1" lat="1" lon="2"><tag k="name" v="Nameless Bar"/></node>
 <node id="2" lat="1" lon="2"><tag k="amenity" v="bar"/></node>
 <node id="3" lat="1" lon="2"><tag k="amenity" v="fountain"/><tag k="name" v="Plaza Fountain"/></node>
 <node id="4" lat="1" lon="2"><tag k="addr:housenumber" v="12"/><tag k="addr:street" v="Main"/></node>
</osm>`

	data, err := Normalize([]byte(payload), joesBounds, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, data.POIs, 1)
	assert.Equal(t, "Plaza Fountain", data.POIs[0].Name)
	// unknown categories are kept here and filtered by the renderer
	assert.Equal(t, "fountain", data.POIs[0].Category)
}

func TestNormalize_SkipsMalformedElements(t *testing.T) {
	payload := `<osm version="0.6">
 <node id="1" lat="north" lon="2"/>
 <node id="2" lat="1.5" lon="2.5"><tag k="name" v="Diner"/><tag k="amenity" v="restaurant"/></node>
 <node id="3" lat="1.6" lon="2.6"/>
 <way id="bogus"><nd ref="2"/><nd ref="3"/></way>
 <way id="5"><nd ref="2"/><nd ref="3"/></way>
</osm>`

	data, err := Normalize([]byte(payload), joesBounds, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, data.SkippedNodes)
	assert.Len(t, data.Nodes, 2)
	require.Len(t, data.POIs, 1)
	assert.Equal(t, "Diner", data.POIs[0].Name)
	require.Len(t, data.Ways, 1)
	assert.Equal(t, osm.WayID(5), data.Ways[0].ID)
}

func TestNormalize_TruncatedPayloadKeepsDecodedElements(t *testing.T) {
	payload := `<osm version="0.6">
 <node id="1" lat="1" lon="2"/>
 <node id="2" lat="1.1" lon="2.1"/>
 <way id="3"><nd ref="1"/><nd ref="2"/></way>
 <node id="4" lat="1`

	data, err := Normalize([]byte(payload), joesBounds, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 2)
	assert.Len(t, data.Ways, 1)
}

func TestNormalize_NotAnOSMDocument(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"plain text", "You requested too many nodes (limit is 50000)."},
		{"html", "<html><body>Service Unavailable</body></html>"},
		{"empty", ""},
		{"garbage", "<<<>>>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.payload), joesBounds, zerolog.Nop())
			require.Error(t, err)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestData_Extent(t *testing.T) {
	data, err := Normalize([]byte(joesPayload), joesBounds, zerolog.Nop())
	require.NoError(t, err)

	ext := data.Extent()
	assert.InDelta(t, -118.575, ext.Min.Lon(), 1e-9)
	assert.InDelta(t, 34.395, ext.Min.Lat(), 1e-9)
	assert.InDelta(t, -118.574, ext.Max.Lon(), 1e-9)
	assert.InDelta(t, 34.396, ext.Max.Lat(), 1e-9)
}
