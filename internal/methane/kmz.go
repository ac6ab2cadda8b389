package methane

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"math"
	"os"

	"geotagger/internal/sensor"
)

type kmlDoc struct {
	XMLName  xml.Name    `xml:"kml"`
	XMLNS    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string        `xml:"name"`
	Description string        `xml:"description,omitempty"`
	TimeStamp   *kmlTimeStamp `xml:"TimeStamp,omitempty"`
	Point       kmlPoint      `xml:"Point"`
}

type kmlTimeStamp struct {
	When string `xml:"when"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

// WriteKMZ writes records as KML placemarks zipped into path.
func WriteKMZ(path, name string, records []sensor.Record) error {
	doc := kmlDoc{
		XMLNS:    "http://www.opengis.net/kml/2.2",
		Document: kmlDocument{Name: name},
	}
	for _, r := range records {
		pm := kmlPlacemark{
			Name:        fmt.Sprintf("%d ppm", int64(math.Round(r.PPM))),
			Description: sensor.Description(r),
			Point:       kmlPoint{Coordinates: fmt.Sprintf("%.8f,%.8f,0", r.Lon, r.Lat)},
		}
		if r.HasTime() {
			pm.TimeStamp = &kmlTimeStamp{When: r.Time.Format("2006-01-02T15:04:05Z")}
		}
		doc.Document.Placemarks = append(doc.Document.Placemarks, pm)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create kmz: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	entry, err := zw.Create("doc.kml")
	if err != nil {
		return fmt.Errorf("create kml entry: %w", err)
	}
	if _, err := entry.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(entry)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish kmz: %w", err)
	}
	return f.Close()
}
