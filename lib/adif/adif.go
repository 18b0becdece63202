// Package adif renders QSOs as ADIF (ADI) records.
package adif

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

type QSO struct {
	Call    string
	Band    string
	Mode    string
	Freq    string
	QSODate string
	TimeOn  string
	TimeOff string
	RSTRcvd string
	RSTSent string
	QSLRcvd string
	QSLSent string

	Country    string
	Gridsquare string
	Name       string
	County     string
	State      string
	Continent  string
	QTH        string
}

// ApplyLookup fills the station fields of the QSO from a hamqth profile.
func (q *QSO) ApplyLookup(fields map[string]string) {
	q.Country = fields["country"]
	q.Gridsquare = fields["grid"]
	q.Name = fields["nick"]
	q.County = fields["us_county"]
	q.State = fields["us_state"]
	q.Continent = fields["continent"]

	q.QTH = fields["adr_city"]
	if q.State != "" {
		if q.QTH != "" {
			q.QTH += ", "
		}
		q.QTH += q.State
	}
}

type Field struct {
	Name  string
	Value string
}

type Record []Field

// Record lists the QSO's fields in ADIF order, empty fields are left out.
func (q QSO) Record() Record {
	all := Record{
		{"call", q.Call},
		{"band", q.Band},
		{"mode", q.Mode},
		{"freq", q.Freq},
		{"qso_date", q.QSODate},
		{"time_on", q.TimeOn},
		{"time_off", q.TimeOff},
		{"rst_rcvd", q.RSTRcvd},
		{"rst_sent", q.RSTSent},
		{"qsl_rcvd", q.QSLRcvd},
		{"qsl_sent", q.QSLSent},
		{"country", q.Country},
		{"gridsquare", q.Gridsquare},
		{"name", q.Name},
		{"cnty", q.County},
		{"state", q.State},
		{"cont", q.Continent},
		{"qth", q.QTH},
	}

	record := make(Record, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			record = append(record, f)
		}
	}
	return record
}

// String renders the record as "<name:length>value" pairs closed by <eor>.
func (r Record) String() string {
	var out strings.Builder
	for _, f := range r {
		out.WriteByte('<')
		out.WriteString(f.Name)
		out.WriteByte(':')
		out.WriteString(strconv.Itoa(utf8.RuneCountInString(f.Value)))
		out.WriteByte('>')
		out.WriteString(f.Value)
	}
	out.WriteString("<eor>")
	return out.String()
}

func (q QSO) String() string {
	return q.Record().String()
}
