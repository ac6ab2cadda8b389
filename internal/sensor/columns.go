package sensor

import (
	"strings"
	"unicode"
)

type field int

const (
	fieldLat field = iota
	fieldLon
	fieldPPM
	fieldTimestamp
	fieldPhoto
	fieldRelativeAltitude
	fieldAltitude
	fieldLight
	fieldGimbalPitch
	fieldGimbalRoll
	fieldGimbalYaw
	fieldUAVPitch
	fieldUAVRoll
	fieldUAVYaw
	fieldFocalLength
	fieldZoom
	fieldCount
)

// candidates lists accepted header names per field, most specific first.
// Fields are resolved in declaration order and a column claimed by an
// earlier field is never reused, so relative altitude and gimbal angles
// resolve before the generic altitude and attitude columns.
var candidates = [fieldCount][]string{
	fieldLat:              {"latitude", "lat", "gps latitude", "gps lat"},
	fieldLon:              {"longitude", "lon", "lng", "long", "gps longitude", "gps lon"},
	fieldPPM:              {"ppm", "methane", "ch4", "concentration", "ppm m", "ppmm", "gas"},
	fieldTimestamp:        {"timestamp", "datetime", "date time", "time", "gps time", "utc"},
	fieldPhoto:            {"photo", "photo name", "image", "image name", "filename", "file name", "picture", "img"},
	fieldRelativeAltitude: {"relative altitude", "rel altitude", "rel alt", "agl", "height above ground", "height"},
	fieldAltitude:         {"altitude", "alt", "absolute altitude", "gps altitude", "msl"},
	fieldLight:            {"light intensity", "light", "lux", "illuminance"},
	fieldGimbalPitch:      {"gimbal pitch"},
	fieldGimbalRoll:       {"gimbal roll"},
	fieldGimbalYaw:        {"gimbal yaw"},
	fieldUAVPitch:         {"uav pitch", "aircraft pitch", "drone pitch", "pitch"},
	fieldUAVRoll:          {"uav roll", "aircraft roll", "drone roll", "roll"},
	fieldUAVYaw:           {"uav yaw", "aircraft yaw", "drone yaw", "yaw", "heading"},
	fieldFocalLength:      {"camera focal length", "focal length", "focal"},
	fieldZoom:             {"camera zoom", "zoom", "zoom ratio"},
}

// columnMap maps each field to its column index, or -1 when absent.
type columnMap [fieldCount]int

func (m columnMap) has(f field) bool { return m[f] >= 0 }

// normalizeHeader lowercases a header and collapses every run of
// non-alphanumeric characters into a single space.
func normalizeHeader(h string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// containsWord reports whether phrase appears in header on word boundaries.
func containsWord(header, phrase string) bool {
	return strings.Contains(" "+header+" ", " "+phrase+" ")
}

type matchMode int

const (
	matchExact matchMode = iota
	matchWord
	matchSubstring
)

// resolveColumns assigns header columns to fields. For each field an exact
// match wins over a whole-word match, which wins over a substring match.
// Candidates shorter than four characters never match as bare substrings so
// "lat" cannot claim "relative altitude".
func resolveColumns(header []string) columnMap {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}
	claimed := make([]bool, len(header))

	var m columnMap
	for f := range fieldCount {
		m[f] = -1
		for _, mode := range []matchMode{matchExact, matchWord, matchSubstring} {
			if idx := findColumn(norm, claimed, candidates[f], mode); idx >= 0 {
				m[f] = idx
				claimed[idx] = true
				break
			}
		}
	}
	return m
}

func findColumn(norm []string, claimed []bool, names []string, mode matchMode) int {
	for _, name := range names {
		for i, h := range norm {
			if claimed[i] || h == "" {
				continue
			}
			switch mode {
			case matchExact:
				if h == name {
					return i
				}
			case matchWord:
				if containsWord(h, name) {
					return i
				}
			case matchSubstring:
				if len(name) >= 4 && strings.Contains(h, name) {
					return i
				}
			}
		}
	}
	return -1
}
