package sensor

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"geotagger/internal/testsupport"
)

func TestParseDropsBadRowsIndividually(t *testing.T) {
	raw := []byte("Latitude,Longitude,PPM,Time,Photo\n" +
		"1.0,2.0,10,2023-08-30 20:51:00,IMG_0001.jpg\n" +
		"abc,2.0,11,2023-08-30 20:51:01,\n" +
		"\n" +
		"95.0,2.0,12,,\n" +
		"1.5,2.5,,not a time,sub\\IMG_0002.jpg\n")
	l := Parse("flight.csv", raw)
	if l.Skipped() {
		t.Fatalf("unexpected skip: %s", l.SkipReason)
	}
	if len(l.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(l.Records))
	}
	if l.RowsDropped != 2 {
		t.Fatalf("expected 2 dropped rows, got %d", l.RowsDropped)
	}
	first := l.Records[0]
	if first.Lat != 1.0 || first.Lon != 2.0 || first.PPM != 10 || first.Photo != "IMG_0001.jpg" || !first.HasTime() {
		t.Fatalf("unexpected first record: %#v", first)
	}
	second := l.Records[1]
	if second.HasTime() {
		t.Fatalf("expected unparseable timestamp to leave record untimed, got %v", second.Time)
	}
	if second.PPM != 0 {
		t.Fatalf("expected missing ppm to default to 0, got %v", second.PPM)
	}
	if second.Photo != "IMG_0002.jpg" {
		t.Fatalf("expected base name of windows path, got %q", second.Photo)
	}
}

func TestParseSkipsLogWithoutCoordinates(t *testing.T) {
	l := Parse("x.csv", []byte("time,ppm\n2023-08-30 20:51:00,10\n"))
	if !l.Skipped() {
		t.Fatal("expected log without lat/lon columns to be skipped")
	}
}

func TestParseSkipsUndecodableLog(t *testing.T) {
	l := Parse("x.csv", []byte{'l', 'a', 't', ',', 'l', 'o', 'n', '\n', 0xff, 0xfe, 0xfd, '\n'})
	if !l.Skipped() {
		t.Fatal("expected invalid UTF-8 to skip the log")
	}
}

func TestParseKeepsReplacementCharacterInValidUTF8(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "plain", raw: "Latitude,Longitude,Note\n1.0,2.0,sensor \uFFFD glitch\n"},
		{name: "with BOM", raw: "\ufeffLatitude,Longitude,Note\n1.0,2.0,sensor \uFFFD glitch\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Parse("notes.csv", []byte(tt.raw))
			if l.Skipped() {
				t.Fatalf("valid UTF-8 log skipped: %s", l.SkipReason)
			}
			if len(l.Records) != 1 || l.Records[0].Lat != 1.0 {
				t.Fatalf("unexpected records: %#v", l.Records)
			}
		})
	}
}

func TestParseSkipsInvalidUTF8AfterBOM(t *testing.T) {
	raw := append([]byte("\ufefflat,lon\n"), 0xff, '\n')
	if l := Parse("x.csv", raw); !l.Skipped() {
		t.Fatal("expected invalid UTF-8 after a BOM to skip the log")
	}
}

func TestParseHandlesBOMAndSemicolons(t *testing.T) {
	text := "Latitude;Longitude;PPM\n1,25;2,5;100\n"
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	for name, raw := range map[string][]byte{
		"utf8 bom": append([]byte{0xEF, 0xBB, 0xBF}, text...),
		"utf16":    utf16,
	} {
		t.Run(name, func(t *testing.T) {
			l := Parse("x.csv", raw)
			if l.Skipped() {
				t.Fatalf("unexpected skip: %s", l.SkipReason)
			}
			if len(l.Records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(l.Records))
			}
			rec := l.Records[0]
			if rec.Lat != 1.25 || rec.Lon != 2.5 || rec.PPM != 100 {
				t.Fatalf("unexpected record %#v", rec)
			}
		})
	}
}

func TestParseExtendedTelemetry(t *testing.T) {
	raw := []byte("lat,lon,ppm,Altitude,Relative Altitude,Light Intensity,UAV Pitch,UAV Roll,UAV Yaw,Gimbal Pitch,Gimbal Roll,Gimbal Yaw,Camera Focal Length,Camera Zoom\n" +
		"1,2,50,120.5,25,300,1,2,3,-90,0,45,24,2\n")
	l := Parse("x.csv", raw)
	if len(l.Records) != 1 {
		t.Fatalf("expected 1 record, got %d (%s)", len(l.Records), l.SkipReason)
	}
	tel := l.Records[0].Telemetry
	checks := map[string]*float64{
		"altitude":          tel.Altitude,
		"relative_altitude": tel.RelativeAltitude,
		"light":             tel.LightIntensity,
		"uav_pitch":         tel.UAVPitch,
		"uav_roll":          tel.UAVRoll,
		"uav_yaw":           tel.UAVYaw,
		"gimbal_pitch":      tel.GimbalPitch,
		"gimbal_roll":       tel.GimbalRoll,
		"gimbal_yaw":        tel.GimbalYaw,
		"focal":             tel.FocalLength,
		"zoom":              tel.Zoom,
	}
	for name, v := range checks {
		if v == nil {
			t.Fatalf("%s not parsed", name)
		}
	}
	if *tel.Altitude != 120.5 || *tel.RelativeAltitude != 25 || *tel.GimbalPitch != -90 {
		t.Fatalf("unexpected telemetry values %+v", tel)
	}
}

func TestBuildIndexesLogsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	bad := filepath.Join(dir, "bad.csv")
	header := []string{"Latitude", "Longitude", "PPM", "Photo"}
	testsupport.WriteCSV(t, a, header, []string{"1", "1", "5", "IMG_0001.jpg"})
	testsupport.WriteCSV(t, b, header, []string{"2", "2", "6", "IMG_0001.jpg"}, []string{"3", "3", "7", "IMG_0002.jpg"})
	testsupport.WriteCSV(t, bad, []string{"foo", "bar"}, []string{"1", "2"})

	idx, err := Build(context.Background(), []string{a, b, bad}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	st := idx.Stats()
	if st.LogsParsed != 2 || st.LogsSkipped != 1 || st.Records != 3 || st.PhotoReferences != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	m, failure := idx.Match("/photos/IMG_0001.jpg", MatchOptions{MaxDelta: 3e9}).Get()
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if m.Record.LogPath != a {
		t.Fatalf("expected first reference to win, got %s", m.Record.LogPath)
	}
}
