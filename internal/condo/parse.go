package condo

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/textnorm"
)

// Column names of the RNIC open-data extract, folded with textnorm.
var columnAliases = map[string]string{
	"numero immatriculation":                    "id",
	"numero d immatriculation":                  "id",
	"nom d usage de la copropriete":             "name",
	"adresse de reference":                      "address",
	"numero et voie adresse de reference":       "address",
	"code postal adresse de reference":          "postal_code",
	"code postal":                               "postal_code",
	"commune adresse de reference":              "city",
	"code officiel commune":                     "city_code",
	"code insee commune":                        "city_code",
	"nombre total de lots":                      "total_lots",
	"nombre de lots a usage d habitation":       "units",
	"nombre total de lots a usage d habitation": "units",
	"raison sociale du representant legal":      "manager",
	"periode de construction":                   "period",
	"lat":                                       "lat",
	"latitude":                                  "lat",
	"long":                                      "lon",
	"longitude":                                 "lon",
}

// columnMap resolves header cells to field positions.
type columnMap map[string]int

func newColumnMap(header []string) (columnMap, error) {
	m := make(columnMap)
	for i, h := range header {
		key := textnorm.Fold(h)
		if field, ok := columnAliases[key]; ok {
			if _, seen := m[field]; !seen {
				m[field] = i
			}
		}
	}
	for _, required := range []string{"id", "address", "postal_code"} {
		if _, ok := m[required]; !ok {
			return nil, eris.Errorf("condo: header lacks %s column", required)
		}
	}
	return m, nil
}

func (m columnMap) get(row []string, field string) string {
	i, ok := m[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (m columnMap) int(row []string, field string) int {
	s := m.get(row, field)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

func (m columnMap) float(row []string, field string) float64 {
	s := m.get(row, field)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

// record builds a Record from a data row. ok is false for rows without the
// identifying columns.
func (m columnMap) record(row []string) (Record, bool) {
	r := Record{
		ID:          m.get(row, "id"),
		Name:        m.get(row, "name"),
		Address:     m.get(row, "address"),
		PostalCode:  m.get(row, "postal_code"),
		City:        m.get(row, "city"),
		CityCode:    m.get(row, "city_code"),
		TotalLots:   m.int(row, "total_lots"),
		Units:       m.int(row, "units"),
		ManagerName: m.get(row, "manager"),
		Period:      m.get(row, "period"),
		Lat:         m.float(row, "lat"),
		Lon:         m.float(row, "lon"),
	}
	if len(r.PostalCode) == 4 {
		r.PostalCode = "0" + r.PostalCode
	}
	if r.ID == "" || r.Address == "" || len(r.PostalCode) != 5 {
		return Record{}, false
	}
	return r, true
}
