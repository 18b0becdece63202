package adif

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordString(t *testing.T) {
	qso := QSO{
		Call:    "W1AW",
		Band:    "40M",
		Mode:    "FT8",
		Freq:    "14.074000",
		QSODate: "20220415",
		TimeOn:  "170000",
		TimeOff: "170100",
		RSTRcvd: "-10",
		RSTSent: "+11",
		QSLRcvd: "N",
		QSLSent: "N",
	}
	qso.ApplyLookup(map[string]string{
		"country":   "United States",
		"grid":      "FN31",
		"nick":      "Hiram",
		"us_county": "Hartford",
		"us_state":  "CT",
		"continent": "NA",
		"adr_city":  "Newington",
	})

	expected := "<call:4>W1AW<band:3>40M<mode:3>FT8<freq:9>14.074000" +
		"<qso_date:8>20220415<time_on:6>170000<time_off:6>170100" +
		"<rst_rcvd:3>-10<rst_sent:3>+11<qsl_rcvd:1>N<qsl_sent:1>N" +
		"<country:13>United States<gridsquare:4>FN31<name:5>Hiram" +
		"<cnty:8>Hartford<state:2>CT<cont:2>NA<qth:13>Newington, CT<eor>"
	require.Equal(t, expected, qso.String())
}

func TestApplyLookupWithoutState(t *testing.T) {
	var qso QSO
	qso.ApplyLookup(map[string]string{
		"country":  "Czech Republic",
		"nick":     "Petr",
		"adr_city": "Praha",
	})

	require.Equal(t, "Praha", qso.QTH)
	require.Empty(t, qso.State)
	require.Equal(t, "<country:14>Czech Republic<name:4>Petr<qth:5>Praha<eor>", qso.String())
}

func TestRecordCountsCharacters(t *testing.T) {
	qso := QSO{Call: "OK1XYZ", Name: "Jiří"}
	require.Equal(t, "<call:6>OK1XYZ<name:4>Jiří<eor>", qso.String())
}

func TestEmptyRecord(t *testing.T) {
	require.Equal(t, "<eor>", QSO{}.String())
}
