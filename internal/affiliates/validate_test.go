package affiliates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRow() RawRow {
	return RawRow{
		ColTipoDocumento:   "CC",
		ColIdentificacion:  "1234567890",
		ColFechaNacimiento: "05/03/1990",
		ColSexo:            "F",
		ColEstado:          "AC",
		ColZona:            "U",
		ColEPS:             "eps037",
		ColTipoPoblacion:   "5",
		ColLMA:             "12,50",
	}
}

func TestValidateRowAcceptsValidRow(t *testing.T) {
	v := NewValidator(nil)
	errs := v.ValidateRow(validRow(), SubsidizedRegime().RequiredColumns, 2)
	assert.Empty(t, errs)
}

func TestValidateRowNumericDocumentType(t *testing.T) {
	row := validRow()
	row[ColTipoDocumento] = "123"

	errs := NewValidator(nil).ValidateRow(row, SubsidizedRegime().RequiredColumns, 5)
	require.GreaterOrEqual(t, len(errs), 2)
	assert.Contains(t, errs[0].Message, "must not be numeric")
	assert.Contains(t, errs[1].Message, "invalid format")
	for _, e := range errs {
		assert.Equal(t, 5, e.Line)
		assert.True(t, strings.HasPrefix(e.Message, "Row 5: "), e.Message)
	}
}

func TestValidateRowRequiredColumns(t *testing.T) {
	row := validRow()
	row[ColIdentificacion] = "   "

	errs := NewValidator(nil).ValidateRow(row, SubsidizedRegime().RequiredColumns, 3)
	require.Len(t, errs, 1)
	assert.Equal(t, "Row 3: IDENTIFICACION is required", errs[0].Message)
}

func TestValidateRowFieldChecks(t *testing.T) {
	cases := []struct {
		name   string
		col    Column
		value  string
		errors int
	}{
		{name: "identification letters", col: ColIdentificacion, value: "12ab5678", errors: 1},
		{name: "identification short and letters", col: ColIdentificacion, value: "12a", errors: 2},
		{name: "identification too long", col: ColIdentificacion, value: strings.Repeat("1", 21), errors: 1},
		{name: "birthdate", col: ColFechaNacimiento, value: "1990-03-05", errors: 1},
		{name: "lma", col: ColLMA, value: "1,2,3", errors: 1},
		{name: "population not digits", col: ColTipoPoblacion, value: "x", errors: 1},
		{name: "population unknown", col: ColTipoPoblacion, value: "99", errors: 1},
		{name: "zone numeric", col: ColZona, value: "1", errors: 3},
		{name: "zone unknown", col: ColZona, value: "X", errors: 1},
		{name: "sex numeric", col: ColSexo, value: "12", errors: 2},
		{name: "sex too long", col: ColSexo, value: "FEMENINO", errors: 1},
		{name: "status unknown", col: ColEstado, value: "ZZ", errors: 1},
		{name: "eps format", col: ColEPS, value: "EPS-0001", errors: 2},
		{name: "eps unknown", col: ColEPS, value: "EPS999", errors: 1},
	}

	v := NewValidator(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := validRow()
			row[tc.col] = tc.value
			errs := v.ValidateRow(row, SubsidizedRegime().RequiredColumns, 9)
			assert.Len(t, errs, tc.errors, "%v", errs)
		})
	}
}

func TestValidateRowCustomVocabulary(t *testing.T) {
	vocab := DefaultVocabulary()
	vocab.EPSCodes = stringSet([]string{"ABC1"})

	row := validRow()
	row[ColEPS] = "abc1"
	assert.Empty(t, NewValidator(vocab).ValidateRow(row, SubsidizedRegime().RequiredColumns, 2))
}
