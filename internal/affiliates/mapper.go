package affiliates

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"siges/internal/util"
)

// AffiliateRecord is the backend shape of one accepted CSV row.
type AffiliateRecord struct {
	IdentificationType     string           `json:"identificationType"`
	Identification         json.Number      `json:"identification"`
	Birthdate              *string          `json:"birthdate,omitempty"`
	FirstName              *string          `json:"firstName,omitempty"`
	SecondName             *string          `json:"secondName,omitempty"`
	FirstLastName          *string          `json:"firstLastName,omitempty"`
	SecondLastName         *string          `json:"secondLastName,omitempty"`
	Sex                    *string          `json:"sex,omitempty"`
	Area                   *string          `json:"area,omitempty"`
	State                  *string          `json:"state,omitempty"`
	DepartmentMunicipality *string          `json:"departmentMunicipality,omitempty"`
	EPS                    *string          `json:"eps,omitempty"`
	PopulationTypeID       *int             `json:"populationTypeId,omitempty"`
	SisbenLevel            *int             `json:"sisbenLevel,omitempty"`
	GroupSubgroup          *string          `json:"groupSubgroup,omitempty"`
	AffiliationDate        *string          `json:"affiliationDate,omitempty"`
	SisbenNumber           *string          `json:"sisbenNumber,omitempty"`
	LMAPayment             *decimal.Decimal `json:"lmaPayment,omitempty"`
}

// MapRow builds the record for a row that already passed validation. It
// fails only when the mandatory identification fields cannot be converted.
func MapRow(row RawRow) (AffiliateRecord, error) {
	docType := strings.ToUpper(row.Get(ColTipoDocumento))
	id := row.Get(ColIdentificacion)
	if docType == "" || !util.IsDigits(id) {
		return AffiliateRecord{}, fmt.Errorf("row is missing identification fields")
	}

	rec := AffiliateRecord{
		IdentificationType: docType,
		Identification:     json.Number(trimLeadingZeros(id)),
		FirstName:          optionalText(row, ColPrimerNombre),
		SecondName:         optionalText(row, ColSegundoNombre),
		FirstLastName:      optionalText(row, ColPrimerApellido),
		SecondLastName:     optionalText(row, ColSegundoApellido),
		Sex:                optionalCode(row, ColSexo),
		Area:               optionalCode(row, ColZona),
		State:              optionalCode(row, ColEstado),
		EPS:                optionalCode(row, ColEPS),
		SisbenNumber:       optionalText(row, ColFichaSisben),
	}

	if iso, ok := ToISODate(row.Get(ColFechaNacimiento)); ok {
		rec.Birthdate = &iso
	}
	if iso, ok := ToISODate(row.Get(ColFechaAfiliacion)); ok {
		rec.AffiliationDate = &iso
	}
	if code, ok := BuildDepartmentMunicipality(row.Get(ColCodDepartamento), row.Get(ColCodMunicipio)); ok {
		rec.DepartmentMunicipality = &code
	}
	if gs, ok := BuildGroupSubgroup(row.Get(ColGrupo), row.Get(ColSubgrupo)); ok {
		rec.GroupSubgroup = &gs
	}
	if n, ok := ParseInteger(row.Get(ColTipoPoblacion)); ok {
		rec.PopulationTypeID = util.IntPtr(int(n))
	}
	if level, ok := ParseSisbenLevel(row.Get(ColNivelSisben)); ok {
		rec.SisbenLevel = &level
	}
	if amount, ok := ParseDecimal(row.Get(ColLMA)); ok {
		rec.LMAPayment = &amount
	}

	return rec, nil
}

func optionalText(row RawRow, col Column) *string {
	v := util.CollapseSpaces(row.Get(col))
	if v == "" {
		return nil
	}
	return &v
}

func optionalCode(row RawRow, col Column) *string {
	v := strings.ToUpper(row.Get(col))
	if v == "" {
		return nil
	}
	return &v
}

func trimLeadingZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
