// Package swob fetches and parses Environment and Climate Change Canada
// SWOB-ML buoy observation reports from the MSC Datamart. It implements the
// supervisor's Fetcher capability.
package swob

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

// elementFieldMap translates SWOB element names to raw record fields. The
// feed uses several names per concept depending on the buoy's reporting
// cadence; all variants map to the same field.
var elementFieldMap = map[string]string{
	"avg_wnd_spd_pst10mts":           "wind_speed",
	"avg_wnd_spd_pst10mts_1":         "wind_speed",
	"avg_wnd_dir_pst10mts":           "wind_direction",
	"avg_stn_pres_pst10mts":          "pressure",
	"sig_wave_hgt_pst20mts":          "wave_height",
	"avg_sig_wave_hgt_pst20mts":      "wave_height",
	"sig_wave_hgt_pst35mts_10mts_ago": "wave_height",
	"water_lvl_msl":                  "water_level",
}

// swobElement is one <element name=... value=... uom=.../> entry.
type swobElement struct {
	name  string
	value string
	uom   string
}

// parsedReport holds the fields pulled from one SWOB-ML document.
type parsedReport struct {
	timestamp string
	elements  []swobElement
}

// ParseReport converts a SWOB-ML document into raw buoy records. The buoy ID
// prefers the 7-digit wmo_id_extnd over the 5-digit wmo_synop_id, matching
// the feed's identification metadata. A document missing a timestamp or any
// buoy identifier is rejected.
func ParseReport(r io.Reader) ([]domain.RawBuoyRecord, error) {
	report, err := scan(r)
	if err != nil {
		return nil, fmt.Errorf("parse swob report: %w", err)
	}
	if report.timestamp == "" {
		return nil, fmt.Errorf("swob report has no observation time")
	}

	buoyID := identifyBuoy(report.elements)
	if buoyID == "" {
		return nil, fmt.Errorf("swob report has no buoy identifier")
	}

	rec := domain.RawBuoyRecord{
		BuoyID:    buoyID,
		Timestamp: report.timestamp,
		Quality:   quality(report.elements),
	}

	for _, el := range report.elements {
		field, ok := elementFieldMap[el.name]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(el.value), 64)
		if err != nil {
			continue // unparseable values are skipped, not fatal
		}
		switch field {
		case "wind_speed":
			rec.WindSpeed = &v
			rec.WindSpeedUnit = windUnit(el.uom)
		case "wind_direction":
			rec.WindDirection = &v
		case "pressure":
			rec.Pressure = &v
			rec.PressureUnit = pressureUnit(el.uom)
		case "wave_height":
			if rec.WaveHeight == nil { // first variant wins
				rec.WaveHeight = &v
			}
		case "water_level":
			rec.WaterLevel = &v
		}
	}

	return []domain.RawBuoyRecord{rec}, nil
}

// scan walks the document collecting <element> attributes and the GML
// timePosition, regardless of nesting depth. SWOB-ML wraps the observation
// in OM/GML envelopes whose exact structure varies by dissemination path.
func scan(r io.Reader) (parsedReport, error) {
	var report parsedReport
	dec := xml.NewDecoder(r)
	inTimePosition := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return parsedReport{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "element":
				var el swobElement
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "name":
						el.name = a.Value
					case "value":
						el.value = a.Value
					case "uom":
						el.uom = a.Value
					}
				}
				if el.name != "" {
					report.elements = append(report.elements, el)
				}
			case "timePosition":
				inTimePosition = true
			}
		case xml.CharData:
			if inTimePosition && report.timestamp == "" {
				report.timestamp = strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			if t.Name.Local == "timePosition" {
				inTimePosition = false
			}
		}
	}
	return report, nil
}

func identifyBuoy(elements []swobElement) string {
	var synop string
	for _, el := range elements {
		switch el.name {
		case "wmo_id_extnd":
			if el.value != "" {
				return el.value
			}
		case "wmo_synop_id":
			synop = el.value
		}
	}
	return synop
}

// quality reports "verified" when the feed's QA summary passes, otherwise
// "provisional".
func quality(elements []swobElement) string {
	for _, el := range elements {
		if el.name == "qa_summary" && el.value == "100" {
			return string(domain.QualityVerified)
		}
	}
	return string(domain.QualityProvisional)
}

func windUnit(uom string) string {
	switch strings.ToLower(uom) {
	case "km/h", "kmh":
		return "km/h"
	case "kt", "kn":
		return "kt"
	case "m/s", "":
		return "m/s"
	default:
		return uom
	}
}

func pressureUnit(uom string) string {
	switch strings.ToLower(uom) {
	case "kpa":
		return "kPa"
	case "pa":
		return "Pa"
	default:
		return "hPa"
	}
}
