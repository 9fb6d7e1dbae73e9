package affiliates

import (
	"sort"
	"strings"

	"siges/internal/util"
)

// Column is a normalized header name the pipeline knows about.
type Column string

const (
	ColTipoDocumento   Column = "TIPO_DOCUMENTO"
	ColIdentificacion  Column = "IDENTIFICACION"
	ColPrimerNombre    Column = "PRIMER_NOMBRE"
	ColSegundoNombre   Column = "SEGUNDO_NOMBRE"
	ColPrimerApellido  Column = "PRIMER_APELLIDO"
	ColSegundoApellido Column = "SEGUNDO_APELLIDO"
	ColFechaNacimiento Column = "FECHA_NACIMIENTO"
	ColSexo            Column = "SEXO"
	ColZona            Column = "ZONA"
	ColEstado          Column = "ESTADO"
	ColCodDepartamento Column = "COD_DEPARTAMENTO"
	ColCodMunicipio    Column = "COD_MUNICIPIO"
	ColEPS             Column = "EPS"
	ColTipoPoblacion   Column = "TIPO_POBLACION"
	ColNivelSisben     Column = "NIVEL_SISBEN"
	ColGrupo           Column = "GRUPO"
	ColSubgrupo        Column = "SUBGRUPO"
	ColFechaAfiliacion Column = "FECHA_AFILIACION"
	ColFichaSisben     Column = "FICHA_SISBEN"
	ColLMA             Column = "LMA"
)

// AllColumns lists every known column in file order.
var AllColumns = []Column{
	ColTipoDocumento, ColIdentificacion,
	ColPrimerNombre, ColSegundoNombre, ColPrimerApellido, ColSegundoApellido,
	ColFechaNacimiento, ColSexo, ColZona, ColEstado,
	ColCodDepartamento, ColCodMunicipio, ColEPS, ColTipoPoblacion,
	ColNivelSisben, ColGrupo, ColSubgrupo, ColFechaAfiliacion, ColFichaSisben, ColLMA,
}

// ParseColumn maps a raw header cell onto a known column.
func ParseColumn(header string) (Column, bool) {
	norm := Column(util.NormalizeHeader(header))
	for _, c := range AllColumns {
		if c == norm {
			return c, true
		}
	}
	return "", false
}

// RawRow holds the projected cells of one data line. Only known columns are
// ever stored.
type RawRow map[Column]string

// Get returns the trimmed cell value, or "" when the column is absent.
func (r RawRow) Get(c Column) string {
	return strings.TrimSpace(r[c])
}

func (r RawRow) Has(c Column) bool {
	return r.Get(c) != ""
}

// ColumnSet is an unordered set of columns.
type ColumnSet map[Column]struct{}

func NewColumnSet(cols ...Column) ColumnSet {
	s := make(ColumnSet, len(cols))
	for _, c := range cols {
		s[c] = struct{}{}
	}
	return s
}

func (s ColumnSet) Contains(c Column) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in lexical order.
func (s ColumnSet) Sorted() []Column {
	out := make([]Column, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type RegimeCode string

const (
	RegimeSubsidized   RegimeCode = "SUB"
	RegimeContributive RegimeCode = "CONT"
)

// RegimeContext fixes the column contract and file prefix for one regime.
// Both regimes share the minimal required set today; the backend treats them
// differently so they stay separate values.
type RegimeContext struct {
	Code            RegimeCode
	RequiredColumns ColumnSet
	AllowedColumns  ColumnSet
	FilePrefix      string
}

func SubsidizedRegime() RegimeContext {
	return RegimeContext{
		Code:            RegimeSubsidized,
		RequiredColumns: NewColumnSet(ColTipoDocumento, ColIdentificacion),
		AllowedColumns:  NewColumnSet(AllColumns...),
		FilePrefix:      "MS",
	}
}

func ContributiveRegime() RegimeContext {
	return RegimeContext{
		Code:            RegimeContributive,
		RequiredColumns: NewColumnSet(ColTipoDocumento, ColIdentificacion),
		AllowedColumns:  NewColumnSet(AllColumns...),
		FilePrefix:      "MC",
	}
}

// RegimeForOptionName picks the context from a backend regime option display
// name ("SUBSIDIADO", "CONTRIBUTIVO", ...).
func RegimeForOptionName(name string) (RegimeContext, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(upper, "SUB"):
		return SubsidizedRegime(), true
	case strings.HasPrefix(upper, "CON"):
		return ContributiveRegime(), true
	default:
		return RegimeContext{}, false
	}
}

// RegimeForPrefix picks the context from a file name prefix (MS, MSCM, MC, MCCM).
func RegimeForPrefix(prefix string) (RegimeContext, bool) {
	switch {
	case strings.HasPrefix(prefix, "MS"):
		return SubsidizedRegime(), true
	case strings.HasPrefix(prefix, "MC"):
		return ContributiveRegime(), true
	default:
		return RegimeContext{}, false
	}
}
